package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "sync.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func strPtr(s string) *string { return &s }

func TestOpenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sync.db")

	st, err := Open(dbPath, 2)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	// Reopening runs migrations again without error.
	st, err = Open(dbPath, 2)
	require.NoError(t, err)
	require.NoError(t, st.Close())
}

func TestEnqueueAndClaim(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.EnqueueJob(ctx, SyncEvent{
		EventType:   EventCreateFile,
		LocalPath:   "/a/x.txt",
		RemotePath:  "/r/x.txt",
		ChangeToken: strPtr("1700000000:3"),
	})
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	jobs, err := st.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	job := jobs[0]
	assert.Equal(t, EventCreateFile, job.EventType)
	assert.Equal(t, "/a/x.txt", job.LocalPath)
	assert.Equal(t, "/r/x.txt", job.RemotePath)
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, 0, job.NRetries)
	require.NotNil(t, job.ChangeToken)
	assert.Equal(t, "1700000000:3", *job.ChangeToken)
	assert.Nil(t, job.RetryAt)
	assert.Nil(t, job.LastError)

	// Claiming does not mutate the row.
	again, err := st.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, again, 1)
}

func TestClaimOrderIsOldestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first, err := st.EnqueueJob(ctx, SyncEvent{EventType: EventCreateFile, LocalPath: "/a/1", RemotePath: "/r/1", ChangeToken: strPtr("1:1")})
	require.NoError(t, err)
	second, err := st.EnqueueJob(ctx, SyncEvent{EventType: EventDelete, LocalPath: "/a/2", RemotePath: "/r/2"})
	require.NoError(t, err)

	jobs, err := st.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, first, jobs[0].ID)
	assert.Equal(t, second, jobs[1].ID)
}

func TestClaimLimit(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := st.EnqueueJob(ctx, SyncEvent{EventType: EventDelete, LocalPath: "/a", RemotePath: "/r"})
		require.NoError(t, err)
	}

	jobs, err := st.ClaimPending(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, jobs, 3)
}

func TestProcessingNotClaimedUntilRetryDue(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.EnqueueJob(ctx, SyncEvent{EventType: EventUpdate, LocalPath: "/a/x", RemotePath: "/r/x", ChangeToken: strPtr("1:1")})
	require.NoError(t, err)

	require.NoError(t, st.MarkProcessing(ctx, id))

	jobs, err := st.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, jobs, "PROCESSING without retry_at must not be claimed")

	// A future deadline is still not claimable.
	require.NoError(t, st.BumpRetry(ctx, id, time.Now().UTC().Add(time.Hour), "boom"))
	jobs, err = st.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	// A past deadline is.
	require.NoError(t, st.BumpRetry(ctx, id, time.Now().UTC().Add(-time.Minute), "boom"))
	jobs, err = st.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 2, jobs[0].NRetries)
	require.NotNil(t, jobs[0].LastError)
	assert.Equal(t, "boom", *jobs[0].LastError)
}

func TestMarkProcessingClearsRetryAt(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.EnqueueJob(ctx, SyncEvent{EventType: EventUpdate, LocalPath: "/a", RemotePath: "/r", ChangeToken: strPtr("1:1")})
	require.NoError(t, err)

	require.NoError(t, st.BumpRetry(ctx, id, time.Now().UTC().Add(-time.Second), "x"))
	require.NoError(t, st.MarkProcessing(ctx, id))

	job, err := st.GetJob(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, StatusProcessing, job.Status)
	assert.Nil(t, job.RetryAt)
}

func TestSyncedInvariant(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.EnqueueJob(ctx, SyncEvent{EventType: EventCreateFile, LocalPath: "/a", RemotePath: "/r", ChangeToken: strPtr("1:1")})
	require.NoError(t, err)

	require.NoError(t, st.BumpRetry(ctx, id, time.Now().UTC().Add(time.Minute), "transient"))
	require.NoError(t, st.MarkSynced(ctx, id))

	job, err := st.GetJob(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, StatusSynced, job.Status)
	assert.Nil(t, job.RetryAt, "SYNCED implies retry_at is null")
	assert.Nil(t, job.LastError, "SYNCED implies last_error is null")
}

func TestMarkBlockedKeepsError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.EnqueueJob(ctx, SyncEvent{EventType: EventCreateFile, LocalPath: "/a", RemotePath: "/r", ChangeToken: strPtr("1:1")})
	require.NoError(t, err)

	require.NoError(t, st.MarkBlocked(ctx, id, "remote said no"))

	job, err := st.GetJob(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, StatusBlocked, job.Status)
	require.NotNil(t, job.LastError)
	assert.Equal(t, "remote said no", *job.LastError)

	// Blocked rows are never re-claimed.
	jobs, err := st.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	blocked, err := st.ListBlocked(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, blocked, 1)
}

func TestCountByStatus(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a, err := st.EnqueueJob(ctx, SyncEvent{EventType: EventCreateFile, LocalPath: "/a", RemotePath: "/r", ChangeToken: strPtr("1:1")})
	require.NoError(t, err)
	_, err = st.EnqueueJob(ctx, SyncEvent{EventType: EventDelete, LocalPath: "/b", RemotePath: "/r2"})
	require.NoError(t, err)

	require.NoError(t, st.MarkSynced(ctx, a))

	pending, err := st.CountByStatus(ctx, StatusPending)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	counts, err := st.StatusCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusCounts{Pending: 1, Synced: 1}, counts)
	assert.Equal(t, 2, counts.Total())
}

func TestGCSynced(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.EnqueueJob(ctx, SyncEvent{EventType: EventCreateFile, LocalPath: "/a", RemotePath: "/r", ChangeToken: strPtr("1:1")})
	require.NoError(t, err)
	require.NoError(t, st.MarkSynced(ctx, id))

	// Fresh rows survive.
	n, err := st.GCSynced(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	// A negative retention collects everything synced up to now.
	n, err = st.GCSynced(ctx, -time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	job, err := st.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestFileStateRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	state, err := st.GetFileState(ctx, "/a/x.txt")
	require.NoError(t, err)
	assert.Nil(t, state)

	require.NoError(t, st.UpsertFileState(ctx, "/a/x.txt", "1700000000:3"))

	state, err = st.GetFileState(ctx, "/a/x.txt")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "1700000000:3", state.ChangeToken)

	require.NoError(t, st.UpsertFileState(ctx, "/a/x.txt", "1700000100:5"))
	state, err = st.GetFileState(ctx, "/a/x.txt")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "1700000100:5", state.ChangeToken)

	require.NoError(t, st.DeleteFileState(ctx, "/a/x.txt"))
	state, err = st.GetFileState(ctx, "/a/x.txt")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestFileStatesUnder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertFileState(ctx, "/a/one", "1:1"))
	require.NoError(t, st.UpsertFileState(ctx, "/a/two", "2:2"))
	require.NoError(t, st.UpsertFileState(ctx, "/b/three", "3:3"))

	states, err := st.FileStatesUnder(ctx, "/a/")
	require.NoError(t, err)
	assert.Len(t, states, 2)
}

func TestNodeMappingRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	mapping, err := st.GetNodeMapping(ctx, "/a/x", "/r/x")
	require.NoError(t, err)
	assert.Nil(t, mapping)

	require.NoError(t, st.UpsertNodeMapping(ctx, NodeMapping{
		LocalPath:     "/a/x",
		RemotePath:    "/r/x",
		NodeUID:       "N1",
		ParentNodeUID: "root",
	}))

	mapping, err = st.GetNodeMapping(ctx, "/a/x", "/r/x")
	require.NoError(t, err)
	require.NotNil(t, mapping)
	assert.Equal(t, "N1", mapping.NodeUID)
	assert.Equal(t, "root", mapping.ParentNodeUID)
	assert.False(t, mapping.IsDirectory)

	// Replacing keeps a single live row per pair.
	require.NoError(t, st.UpsertNodeMapping(ctx, NodeMapping{
		LocalPath:     "/a/x",
		RemotePath:    "/r/x",
		NodeUID:       "N2",
		ParentNodeUID: "root",
	}))
	mappings, err := st.NodeMappingsUnder(ctx, "/a/")
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, "N2", mappings[0].NodeUID)

	require.NoError(t, st.DeleteNodeMapping(ctx, "/a/x", "/r/x"))
	mapping, err = st.GetNodeMapping(ctx, "/a/x", "/r/x")
	require.NoError(t, err)
	assert.Nil(t, mapping)
}

func TestSignalsDrainedExactlyOnce(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SendSignal(ctx, SignalPause))
	require.NoError(t, st.SendSignal(ctx, SignalResume))
	require.NoError(t, st.SendSignal(ctx, SignalStop))

	signals, err := st.DrainSignals(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{SignalPause, SignalResume, SignalStop}, signals)

	// Nothing survives the draining tick.
	signals, err = st.DrainSignals(ctx)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestFlags(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	has, err := st.HasFlag(ctx, FlagRunning)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, st.SetFlag(ctx, FlagRunning))
	require.NoError(t, st.SetFlag(ctx, FlagRunning)) // idempotent

	has, err = st.HasFlag(ctx, FlagRunning)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, st.ClearFlag(ctx, FlagRunning))
	has, err = st.HasFlag(ctx, FlagRunning)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestLeaseExclusion(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ok, err := st.TryAcquireLease(ctx, "/a/y")
	require.NoError(t, err)
	assert.True(t, ok)

	// At most one lease per path at any instant.
	ok, err = st.TryAcquireLease(ctx, "/a/y")
	require.NoError(t, err)
	assert.False(t, ok)

	held, err := st.HasLease(ctx, "/a/y")
	require.NoError(t, err)
	assert.True(t, held)

	require.NoError(t, st.ReleaseLease(ctx, "/a/y"))

	ok, err = st.TryAcquireLease(ctx, "/a/y")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClearStaleProcessing(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ok, err := st.TryAcquireLease(ctx, "/a/z")
	require.NoError(t, err)
	require.True(t, ok)

	// Young leases survive.
	n, err := st.ClearStaleProcessing(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	// A negative age collects everything.
	n, err = st.ClearStaleProcessing(ctx, -time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err = st.TryAcquireLease(ctx, "/a/z")
	require.NoError(t, err)
	assert.True(t, ok, "path is claimable again after sweep")
}
