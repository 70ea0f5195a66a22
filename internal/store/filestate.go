package store

import (
	"context"
	"database/sql"
)

// GetFileState loads the stored fingerprint for a local path; (nil, nil)
// when the path has never been synced.
func (s *Store) GetFileState(ctx context.Context, localPath string) (*FileState, error) {
	var st FileState
	err := s.db.QueryRowContext(ctx,
		"SELECT local_path, change_token, updated_at FROM file_state WHERE local_path = ?",
		localPath,
	).Scan(&st.LocalPath, &st.ChangeToken, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, dbErr(err)
	}
	st.UpdatedAt = st.UpdatedAt.UTC()
	return &st, nil
}

// UpsertFileState records the fingerprint that was just replicated.
func (s *Store) UpsertFileState(ctx context.Context, localPath, changeToken string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO file_state (local_path, change_token, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(local_path) DO UPDATE SET
			change_token = excluded.change_token,
			updated_at = excluded.updated_at`,
		localPath, changeToken, now(),
	)
	if err != nil {
		return dbErr(err)
	}
	return nil
}

// DeleteFileState forgets a path after a successful DELETE job.
func (s *Store) DeleteFileState(ctx context.Context, localPath string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM file_state WHERE local_path = ?", localPath)
	if err != nil {
		return dbErr(err)
	}
	return nil
}

// FileStatesUnder returns every stored state whose path starts with the
// prefix. The scanner does not call it; it performs no deletion
// detection.
func (s *Store) FileStatesUnder(ctx context.Context, pathPrefix string) ([]FileState, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT local_path, change_token, updated_at FROM file_state WHERE local_path LIKE ? || '%'",
		pathPrefix,
	)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	var states []FileState
	for rows.Next() {
		var st FileState
		if err := rows.Scan(&st.LocalPath, &st.ChangeToken, &st.UpdatedAt); err != nil {
			return nil, dbErr(err)
		}
		st.UpdatedAt = st.UpdatedAt.UTC()
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return states, nil
}
