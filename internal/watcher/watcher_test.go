package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rashomon-gh/proton-drive-sync/internal/config"
	"github.com/rashomon-gh/proton-drive-sync/internal/store"
)

func TestIsNoiseFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/a/.hidden", true},
		{"/a/.DS_Store", true},
		{"/a/file~", true},
		{"/a/back~up.txt", true},
		{"/a/x.tmp", true},
		{"/a/x.swp", true},
		{"/a/._resource", true},
		{"/a/x.txt", false},
		{"/a/tmp.txt", false},
		{"/a/swap.doc", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsNoiseFile(tt.path), "IsNoiseFile(%q)", tt.path)
	}
}

func TestClassify(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "x.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	eventType, ok := classify(fsnotify.Event{Name: file, Op: fsnotify.Create})
	require.True(t, ok)
	assert.Equal(t, store.EventCreateFile, eventType)

	eventType, ok = classify(fsnotify.Event{Name: dir, Op: fsnotify.Create})
	require.True(t, ok)
	assert.Equal(t, store.EventCreateDir, eventType)

	eventType, ok = classify(fsnotify.Event{Name: file, Op: fsnotify.Write})
	require.True(t, ok)
	assert.Equal(t, store.EventUpdate, eventType)

	eventType, ok = classify(fsnotify.Event{Name: file, Op: fsnotify.Remove})
	require.True(t, ok)
	assert.Equal(t, store.EventDelete, eventType)

	eventType, ok = classify(fsnotify.Event{Name: file, Op: fsnotify.Rename})
	require.True(t, ok)
	assert.Equal(t, store.EventDelete, eventType)

	_, ok = classify(fsnotify.Event{Name: file, Op: fsnotify.Chmod})
	assert.False(t, ok)
}

func TestFindSyncDir(t *testing.T) {
	dirs := []config.SyncDir{
		{SourcePath: "/home/me/docs", RemoteRoot: "/docs"},
		{SourcePath: "/home/me/pics", RemoteRoot: "/pics"},
	}

	dir, ok := findSyncDir("/home/me/docs/a.txt", dirs)
	require.True(t, ok)
	assert.Equal(t, "/docs", dir.RemoteRoot)

	_, ok = findSyncDir("/home/me/music/a.mp3", dirs)
	assert.False(t, ok)

	// A sibling with a shared name prefix is not a match.
	_, ok = findSyncDir("/home/me/docs2/a.txt", dirs)
	assert.False(t, ok)
}

func newWatcherFixture(t *testing.T) (*Watcher, *store.Store, string) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "sync.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	root := t.TempDir()

	cfgPath := filepath.Join(t.TempDir(), config.ConfigFileName)
	mgr, err := config.NewManagerAt(cfgPath)
	require.NoError(t, err)
	require.NoError(t, mgr.AddSyncDir(root, "/r"))

	return New(st, mgr), st, root
}

func claimedJobs(t *testing.T, st *store.Store) []store.Job {
	t.Helper()
	jobs, err := st.ClaimPending(context.Background(), 100)
	require.NoError(t, err)
	return jobs
}

func TestWatcherEnqueuesCreate(t *testing.T) {
	w, st, root := newWatcherFixture(t)

	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { w.Stop() })

	path := filepath.Join(root, "x.txt")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	require.Eventually(t, func() bool {
		return len(claimedJobs(t, st)) > 0
	}, 3*time.Second, 50*time.Millisecond)

	jobs := claimedJobs(t, st)
	job := jobs[0]
	assert.Equal(t, store.EventCreateFile, job.EventType)
	assert.Equal(t, path, job.LocalPath)
	assert.Equal(t, "/r/x.txt", job.RemotePath)
	require.NotNil(t, job.ChangeToken)
}

func TestWatcherIgnoresNoiseFiles(t *testing.T) {
	w, st, root := newWatcherFixture(t)

	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { w.Stop() })

	// Editor noise of every recognized shape.
	for _, name := range []string{".hidden", "a~", "x.tmp", "x.swp", "._meta"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("n"), 0o644))
	}

	// Give the pipeline a moment; nothing should land.
	time.Sleep(500 * time.Millisecond)
	assert.Empty(t, claimedJobs(t, st))
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	w, _, _ := newWatcherFixture(t)

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	// Restartable after stop.
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
}
