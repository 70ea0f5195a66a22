// Package syncerr defines the error kinds shared across the sync daemon.
// Callers wrap these sentinels with fmt.Errorf("...: %w", ...) and match
// them with errors.Is; the kind decides retry vs. fatal handling.
package syncerr

import "errors"

var (
	// ErrConfig covers missing config directories, invalid JSON and
	// invalid list indexes. Fatal at startup, logged at runtime.
	ErrConfig = errors.New("configuration error")

	// ErrDatabase covers store operation failures.
	ErrDatabase = errors.New("database error")

	// ErrIO covers local file I/O failures during a job.
	ErrIO = errors.New("io error")

	// ErrAuth covers secret store and remote auth API failures.
	ErrAuth = errors.New("authentication error")

	// ErrAPI covers non-2xx or non-success codes from the Proton API.
	ErrAPI = errors.New("proton api error")

	// ErrKeyring covers OS secret store failures.
	ErrKeyring = errors.New("keyring error")

	// ErrSync covers remote operations that report failure in-band.
	ErrSync = errors.New("sync error")

	// ErrFileNotFound marks a local path that vanished between enqueue
	// and processing.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidPath marks paths escaping their root or files with an
	// unusable modification time.
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidState marks a job that could not obtain a concurrency
	// permit because its context ended first.
	ErrInvalidState = errors.New("invalid state")

	// ErrWatch covers filesystem notification subsystem failures.
	ErrWatch = errors.New("watch error")
)
