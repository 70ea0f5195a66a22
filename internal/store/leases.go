package store

import (
	"context"
	"time"
)

// TryAcquireLease asserts in-flight work on a local path. It returns
// false when another worker already holds the lease; the caller should
// leave the job for a later tick.
func (s *Store) TryAcquireLease(ctx context.Context, localPath string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO processing_queue (local_path, started_at) VALUES (?, ?)
		ON CONFLICT(local_path) DO NOTHING`,
		localPath, now())
	if err != nil {
		return false, dbErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbErr(err)
	}
	return n > 0, nil
}

// ReleaseLease removes the in-flight assertion for a local path.
func (s *Store) ReleaseLease(ctx context.Context, localPath string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM processing_queue WHERE local_path = ?", localPath)
	if err != nil {
		return dbErr(err)
	}
	return nil
}

// HasLease reports whether a lease row exists for the path.
func (s *Store) HasLease(ctx context.Context, localPath string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM processing_queue WHERE local_path = ?", localPath).Scan(&count)
	if err != nil {
		return false, dbErr(err)
	}
	return count > 0, nil
}

// ClearStaleProcessing deletes leases older than maxAge, recovering
// paths orphaned by crashed workers.
func (s *Store) ClearStaleProcessing(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := now().Add(-maxAge)
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM processing_queue WHERE started_at < ?", cutoff)
	if err != nil {
		return 0, dbErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbErr(err)
	}
	return n, nil
}
