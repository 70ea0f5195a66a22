// Package watcher translates OS filesystem events into enqueued sync
// jobs with minimal latency. It is the fast path; the scanner catches
// whatever it misses.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/rashomon-gh/proton-drive-sync/internal/config"
	"github.com/rashomon-gh/proton-drive-sync/internal/drive"
	"github.com/rashomon-gh/proton-drive-sync/internal/paths"
	"github.com/rashomon-gh/proton-drive-sync/internal/store"
	"github.com/rashomon-gh/proton-drive-sync/internal/syncerr"
	"github.com/rashomon-gh/proton-drive-sync/internal/token"
)

// eventBufferSize bounds the internal channel between the OS forwarder
// and the single consumer.
const eventBufferSize = 100

// Watcher subscribes to filesystem events on every configured root and
// enqueues jobs for the ones that survive filtering.
type Watcher struct {
	st  *store.Store
	cfg *config.Manager

	mu      sync.Mutex
	running bool
	fsw     *fsnotify.Watcher
	done    chan struct{}
}

// New creates a stopped watcher.
func New(st *store.Store, cfg *config.Manager) *Watcher {
	return &Watcher{st: st, cfg: cfg}
}

// Start registers a recursive subscription per configured root and
// launches the consumer. Missing roots log a warning and are skipped;
// the scanner picks them up once they appear.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", syncerr.ErrWatch, err)
	}

	for _, dir := range w.cfg.Get().SyncDirs {
		if _, err := os.Stat(dir.SourcePath); err != nil {
			logrus.WithField("path", dir.SourcePath).Warn("Sync directory does not exist, skipping watch")
			continue
		}
		if err := addRecursive(fsw, dir.SourcePath); err != nil {
			fsw.Close()
			return err
		}
		logrus.WithField("path", dir.SourcePath).Info("Watching directory")
	}

	// Forward OS events into a bounded channel so a slow consumer never
	// blocks the notification callback; overflow is dropped and left to
	// reconciliation.
	events := make(chan fsnotify.Event, eventBufferSize)
	go func() {
		defer close(events)
		for ev := range fsw.Events {
			select {
			case events <- ev:
			default:
				logrus.WithField("path", ev.Name).Debug("Event buffer full, dropping event")
			}
		}
	}()

	go func() {
		for err := range fsw.Errors {
			logrus.WithError(err).Error("Filesystem watch error")
		}
	}()

	done := make(chan struct{})
	go w.consume(ctx, events, done)

	w.fsw = fsw
	w.done = done
	w.running = true
	logrus.Info("File watcher started")
	return nil
}

// Stop closes the OS watcher, which closes the event channel and lets
// the consumer drain out.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	fsw := w.fsw
	done := w.done
	w.fsw = nil
	w.mu.Unlock()

	err := fsw.Close()
	<-done
	logrus.Info("File watcher stopped")

	if err != nil {
		return fmt.Errorf("%w: %v", syncerr.ErrWatch, err)
	}
	return nil
}

// consume is the single drain of the internal event channel, so per-path
// OS event order survives through to enqueue.
func (w *Watcher) consume(ctx context.Context, events <-chan fsnotify.Event, done chan<- struct{}) {
	defer close(done)
	for ev := range events {
		if err := w.handleEvent(ctx, ev); err != nil {
			logrus.WithField("path", ev.Name).WithError(err).Error("Error handling file event")
		}
	}
	logrus.Debug("Event channel closed")
}

// handleEvent runs the per-event pipeline; any step may short-circuit by
// returning nil without enqueueing.
func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) error {
	if ev.Name == "" {
		return nil
	}

	if IsNoiseFile(ev.Name) {
		return nil
	}

	// Copy the relevant config out; the consumer never holds the
	// config lock across I/O.
	cfg := w.cfg.Get()

	syncDir, ok := findSyncDir(ev.Name, cfg.SyncDirs)
	if !ok {
		return nil
	}

	if config.MatchesExclude(ev.Name, cfg.ExcludePatterns) {
		logrus.WithField("path", ev.Name).Debug("Path excluded")
		return nil
	}

	eventType, ok := classify(ev)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"path": ev.Name,
			"op":   ev.Op.String(),
		}).Debug("Ignoring event kind")
		return nil
	}

	// New directories under a watched root need their own subscription;
	// fsnotify watches are not recursive.
	if eventType == store.EventCreateDir {
		w.mu.Lock()
		if w.running && w.fsw != nil {
			if err := addRecursive(w.fsw, ev.Name); err != nil {
				logrus.WithField("path", ev.Name).WithError(err).Warn("Failed to watch new directory")
			}
		}
		w.mu.Unlock()
	}

	rel, err := paths.RelativeTo(syncDir.SourcePath, ev.Name)
	if err != nil {
		logrus.WithField("path", ev.Name).Debug("Path not within sync directory")
		return nil
	}
	remotePath := drive.JoinPath(syncDir.RemoteRoot, rel)

	event := store.SyncEvent{
		EventType:  eventType,
		LocalPath:  ev.Name,
		RemotePath: remotePath,
	}

	// The file may already be gone for DELETE, so only non-delete
	// events carry a token.
	if eventType != store.EventDelete {
		tok, err := token.Compute(ev.Name)
		if err != nil {
			logrus.WithField("path", ev.Name).WithError(err).Debug("Dropping event, token unavailable")
			return nil
		}
		event.ChangeToken = &tok
	}

	id, err := w.st.EnqueueJob(ctx, event)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"job_id":     id,
		"event_type": string(eventType),
		"path":       ev.Name,
	}).Debug("Enqueued job")
	return nil
}

// classify maps an OS event kind onto a sync event type. Create is split
// by the current filesystem type; rename and remove both become DELETE
// (the rename target arrives as its own create event).
func classify(ev fsnotify.Event) (store.EventType, bool) {
	switch {
	case ev.Op.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			return store.EventCreateDir, true
		}
		return store.EventCreateFile, true
	case ev.Op.Has(fsnotify.Write):
		return store.EventUpdate, true
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		return store.EventDelete, true
	default:
		return "", false
	}
}

// IsNoiseFile reports whether a path's basename marks an editor artifact
// or hidden file that never syncs.
func IsNoiseFile(path string) bool {
	name := filepath.Base(path)

	if strings.HasPrefix(name, ".") {
		return true
	}
	if strings.Contains(name, "~") ||
		strings.HasSuffix(name, ".tmp") ||
		strings.HasSuffix(name, ".swp") ||
		strings.HasPrefix(name, "._") {
		return true
	}
	return false
}

// findSyncDir resolves the sync pair whose source is a prefix of path.
func findSyncDir(path string, dirs []config.SyncDir) (config.SyncDir, bool) {
	for _, dir := range dirs {
		source := strings.TrimRight(dir.SourcePath, string(filepath.Separator))
		if path == source || strings.HasPrefix(path, source+string(filepath.Separator)) {
			return dir, true
		}
	}
	return config.SyncDir{}, false
}

// addRecursive registers root and every directory below it.
func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logrus.WithField("path", path).WithError(err).Warn("Skipping unreadable path")
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("%w: failed to watch %s: %v", syncerr.ErrWatch, path, err)
		}
		return nil
	})
}
