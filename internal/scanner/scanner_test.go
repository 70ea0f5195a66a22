package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rashomon-gh/proton-drive-sync/internal/config"
	"github.com/rashomon-gh/proton-drive-sync/internal/store"
	"github.com/rashomon-gh/proton-drive-sync/internal/token"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "sync.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScanEnqueuesNewFiles(t *testing.T) {
	st := newTestStore(t)
	root := t.TempDir()
	ctx := context.Background()

	writeFile(t, filepath.Join(root, "a.txt"), "aaa")
	writeFile(t, filepath.Join(root, "sub", "b.txt"), "bbbb")

	count, err := New(st).ScanDirectory(ctx, root, "/r", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	jobs, err := st.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	remotes := map[string]bool{}
	for _, job := range jobs {
		assert.Equal(t, store.EventUpdate, job.EventType)
		require.NotNil(t, job.ChangeToken)
		remotes[job.RemotePath] = true
	}
	assert.True(t, remotes["/r/a.txt"])
	assert.True(t, remotes["/r/sub/b.txt"])
}

func TestScanIsIdempotentAgainstFileState(t *testing.T) {
	st := newTestStore(t)
	root := t.TempDir()
	ctx := context.Background()

	path := filepath.Join(root, "a.txt")
	writeFile(t, path, "aaa")

	// Simulate a prior successful sync of the identical filesystem.
	tok, err := token.Compute(path)
	require.NoError(t, err)
	require.NoError(t, st.UpsertFileState(ctx, path, tok))

	count, err := New(st).ScanDirectory(ctx, root, "/r", nil)
	require.NoError(t, err)
	assert.Zero(t, count, "an unchanged tree enqueues nothing")

	// Two successive scans enqueue zero on the second run.
	count, err = New(st).ScanDirectory(ctx, root, "/r", nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestScanDetectsModification(t *testing.T) {
	st := newTestStore(t)
	root := t.TempDir()
	ctx := context.Background()

	path := filepath.Join(root, "a.txt")
	writeFile(t, path, "aaa")
	mtime := time.Unix(1700000000, 0)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	tok, err := token.Compute(path)
	require.NoError(t, err)
	require.NoError(t, st.UpsertFileState(ctx, path, tok))

	// Grow the file and bump its mtime.
	writeFile(t, path, "aaaaa")
	later := time.Unix(1700000100, 0)
	require.NoError(t, os.Chtimes(path, later, later))

	count, err := New(st).ScanDirectory(ctx, root, "/r", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	jobs, err := st.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NotNil(t, jobs[0].ChangeToken)
	assert.Equal(t, "1700000100:5", *jobs[0].ChangeToken)
}

func TestScanPrunesExcludedDirectories(t *testing.T) {
	st := newTestStore(t)
	root := t.TempDir()
	ctx := context.Background()

	writeFile(t, filepath.Join(root, "keep.txt"), "k")
	writeFile(t, filepath.Join(root, "node_modules", "dep.js"), "var x")
	writeFile(t, filepath.Join(root, "trace.tmp"), "t")

	exclusions := []config.ExcludePattern{
		{Path: root, Globs: []string{"node_modules", "*.tmp"}},
	}

	count, err := New(st).ScanDirectory(ctx, root, "/r", exclusions)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	jobs, err := st.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "/r/keep.txt", jobs[0].RemotePath)
}

func TestScanAllWalksEveryRoot(t *testing.T) {
	st := newTestStore(t)
	rootA := t.TempDir()
	rootB := t.TempDir()
	ctx := context.Background()

	writeFile(t, filepath.Join(rootA, "a.txt"), "a")
	writeFile(t, filepath.Join(rootB, "b.txt"), "b")

	cfg := config.Default()
	cfg.SyncDirs = []config.SyncDir{
		{SourcePath: rootA, RemoteRoot: "/a"},
		{SourcePath: rootB, RemoteRoot: "/b"},
	}

	count, err := New(st).ScanAll(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
