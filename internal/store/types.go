package store

import "time"

// EventType classifies what a sync job replicates.
type EventType string

const (
	EventCreateFile EventType = "CREATE_FILE"
	EventCreateDir  EventType = "CREATE_DIR"
	EventUpdate     EventType = "UPDATE"
	EventDelete     EventType = "DELETE"
)

// JobStatus is the state-machine position of a sync job.
type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusProcessing JobStatus = "PROCESSING"
	StatusSynced     JobStatus = "SYNCED"
	StatusBlocked    JobStatus = "BLOCKED"
)

// MaxRetries is the number of retry bumps a job gets before BLOCKED.
const MaxRetries = 5

// SyncEvent is the enqueue request produced by the watcher and scanner.
// ChangeToken is nil only for DELETE events. The old-path pair is
// reserved for rename support.
type SyncEvent struct {
	EventType     EventType
	LocalPath     string
	RemotePath    string
	ChangeToken   *string
	OldLocalPath  *string
	OldRemotePath *string
}

// Job is a durable intent to replicate one local path to one remote path.
type Job struct {
	ID            int64
	EventType     EventType
	LocalPath     string
	RemotePath    string
	Status        JobStatus
	RetryAt       *time.Time
	NRetries      int
	LastError     *string
	ChangeToken   *string
	OldLocalPath  *string
	OldRemotePath *string
	CreatedAt     time.Time
}

// FileState records the last successfully replicated fingerprint of a
// local path; it drives scanner skip decisions.
type FileState struct {
	LocalPath   string
	ChangeToken string
	UpdatedAt   time.Time
}

// NodeMapping associates a (local, remote) path pair with the remote
// node identity it was created as.
type NodeMapping struct {
	LocalPath     string
	RemotePath    string
	NodeUID       string
	ParentNodeUID string
	IsDirectory   bool
	UpdatedAt     time.Time
}

// StatusCounts aggregates the job table by status.
type StatusCounts struct {
	Pending    int
	Processing int
	Synced     int
	Blocked    int
}

// Total returns the number of jobs across all statuses.
func (c StatusCounts) Total() int {
	return c.Pending + c.Processing + c.Synced + c.Blocked
}

// Recognized flag names. A flag exists iff its row exists.
const (
	FlagRunning = "running"
	FlagPaused  = "paused"
)

// Recognized signal values, consumed in insertion order exactly once.
const (
	SignalStop   = "stop"
	SignalPause  = "pause"
	SignalResume = "resume"
)
