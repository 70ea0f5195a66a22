package store

import (
	"context"
	"database/sql"
	"time"
)

const jobColumns = `id, event_type, local_path, remote_path, status, retry_at,
	n_retries, last_error, change_token, old_local_path, old_remote_path, created_at`

// EnqueueJob inserts a PENDING job carrying the event's attributes and
// returns its id.
func (s *Store) EnqueueJob(ctx context.Context, ev SyncEvent) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_jobs (event_type, local_path, remote_path, status,
			change_token, old_local_path, old_remote_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(ev.EventType), ev.LocalPath, ev.RemotePath, string(StatusPending),
		ev.ChangeToken, ev.OldLocalPath, ev.OldRemotePath, now(),
	)
	if err != nil {
		return 0, dbErr(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, dbErr(err)
	}
	return id, nil
}

// ClaimPending returns up to limit jobs eligible for processing: PENDING
// rows plus PROCESSING rows whose retry deadline has passed, oldest
// first. Rows are not mutated; callers follow with MarkProcessing.
func (s *Store) ClaimPending(ctx context.Context, limit int) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM sync_jobs
		WHERE status = ? OR (status = ? AND retry_at < ?)
		ORDER BY created_at ASC, id ASC
		LIMIT ?`,
		string(StatusPending), string(StatusProcessing), now(), limit,
	)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, dbErr(err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return jobs, nil
}

// MarkProcessing transitions a claimed job to PROCESSING and clears any
// pending retry deadline.
func (s *Store) MarkProcessing(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sync_jobs SET status = ?, retry_at = NULL WHERE id = ?",
		string(StatusProcessing), id,
	)
	if err != nil {
		return dbErr(err)
	}
	return nil
}

// MarkSynced is the success terminal transition. retry_at and last_error
// are cleared so the SYNCED invariant holds.
func (s *Store) MarkSynced(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sync_jobs SET status = ?, retry_at = NULL, last_error = NULL WHERE id = ?",
		string(StatusSynced), id,
	)
	if err != nil {
		return dbErr(err)
	}
	return nil
}

// MarkBlocked is the failure terminal transition, recording the last
// error for operator inspection.
func (s *Store) MarkBlocked(ctx context.Context, id int64, lastError string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sync_jobs SET status = ?, last_error = ? WHERE id = ?",
		string(StatusBlocked), lastError, id,
	)
	if err != nil {
		return dbErr(err)
	}
	return nil
}

// BumpRetry atomically increments the retry counter and schedules the
// next attempt. The job stays PROCESSING; the claim predicate re-selects
// it once retryAt passes.
func (s *Store) BumpRetry(ctx context.Context, id int64, retryAt time.Time, lastError string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sync_jobs SET n_retries = n_retries + 1, retry_at = ?, last_error = ? WHERE id = ?",
		retryAt.UTC().Truncate(time.Second), lastError, id,
	)
	if err != nil {
		return dbErr(err)
	}
	return nil
}

// CountByStatus returns the number of jobs in the given status.
func (s *Store) CountByStatus(ctx context.Context, status JobStatus) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sync_jobs WHERE status = ?", string(status),
	).Scan(&count)
	if err != nil {
		return 0, dbErr(err)
	}
	return count, nil
}

// StatusCounts aggregates the job table across all four statuses.
func (s *Store) StatusCounts(ctx context.Context) (StatusCounts, error) {
	var c StatusCounts
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM sync_jobs GROUP BY status")
	if err != nil {
		return c, dbErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return c, dbErr(err)
		}
		switch JobStatus(status) {
		case StatusPending:
			c.Pending = n
		case StatusProcessing:
			c.Processing = n
		case StatusSynced:
			c.Synced = n
		case StatusBlocked:
			c.Blocked = n
		}
	}
	if err := rows.Err(); err != nil {
		return c, dbErr(err)
	}
	return c, nil
}

// GetJob loads one job by id; (nil, nil) when absent.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM sync_jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, dbErr(err)
	}
	return &job, nil
}

// ListBlocked returns BLOCKED jobs oldest first, for status output.
func (s *Store) ListBlocked(ctx context.Context, limit int) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM sync_jobs
		WHERE status = ?
		ORDER BY created_at ASC
		LIMIT ?`,
		string(StatusBlocked), limit,
	)
	if err != nil {
		return nil, dbErr(err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, dbErr(err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err)
	}
	return jobs, nil
}

// GCSynced deletes SYNCED jobs created before the cutoff and reports how
// many rows went away.
func (s *Store) GCSynced(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := now().Add(-olderThan)
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sync_jobs WHERE status = ? AND created_at < ?",
		string(StatusSynced), cutoff,
	)
	if err != nil {
		return 0, dbErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbErr(err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (Job, error) {
	var (
		job       Job
		eventType string
		status    string
		retryAt   sql.NullTime
		lastError sql.NullString
		token     sql.NullString
		oldLocal  sql.NullString
		oldRemote sql.NullString
	)

	err := r.Scan(&job.ID, &eventType, &job.LocalPath, &job.RemotePath, &status,
		&retryAt, &job.NRetries, &lastError, &token, &oldLocal, &oldRemote,
		&job.CreatedAt)
	if err != nil {
		return Job{}, err
	}

	job.EventType = EventType(eventType)
	job.Status = JobStatus(status)
	if retryAt.Valid {
		t := retryAt.Time.UTC()
		job.RetryAt = &t
	}
	if lastError.Valid {
		job.LastError = &lastError.String
	}
	if token.Valid {
		job.ChangeToken = &token.String
	}
	if oldLocal.Valid {
		job.OldLocalPath = &oldLocal.String
	}
	if oldRemote.Valid {
		job.OldRemotePath = &oldRemote.String
	}
	job.CreatedAt = job.CreatedAt.UTC()
	return job, nil
}
