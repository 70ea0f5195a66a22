// Package scanner walks each configured root and enqueues jobs for
// files whose current fingerprint differs from the stored one. It both
// bootstraps state after first run and reconciles changes the watcher
// missed.
package scanner

import (
	"context"
	"io/fs"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/rashomon-gh/proton-drive-sync/internal/config"
	"github.com/rashomon-gh/proton-drive-sync/internal/drive"
	"github.com/rashomon-gh/proton-drive-sync/internal/paths"
	"github.com/rashomon-gh/proton-drive-sync/internal/store"
	"github.com/rashomon-gh/proton-drive-sync/internal/token"
)

// Scanner detects local changes by comparing change tokens against the
// stored file state.
type Scanner struct {
	st *store.Store
}

// New creates a scanner over the given store.
func New(st *store.Store) *Scanner {
	return &Scanner{st: st}
}

// ScanDirectory walks directory without following symlinks and enqueues
// an UPDATE job for every file that is new or changed. Excluded
// directories are pruned, not descended into. Returns the number of
// jobs enqueued.
//
// UPDATE covers both create and modify; the processor upgrades to
// create when no node mapping exists.
func (s *Scanner) ScanDirectory(ctx context.Context, directory, remoteRoot string, exclusions []config.ExcludePattern) (int, error) {
	logrus.WithField("path", directory).Info("Scanning directory")

	count := 0
	walkErr := filepath.WalkDir(directory, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logrus.WithField("path", path).WithError(err).Warn("Skipping unreadable path")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if config.MatchesExclude(path, exclusions) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		// Directories are implied by the files they contain.
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		enqueued, err := s.scanFile(ctx, directory, remoteRoot, path)
		if err != nil {
			return err
		}
		if enqueued {
			count++
		}
		return nil
	})
	if walkErr != nil {
		return count, walkErr
	}

	logrus.WithFields(logrus.Fields{
		"path":    directory,
		"changes": count,
	}).Info("Scan complete")
	return count, nil
}

// ScanAll scans every configured root sequentially and returns the total
// number of jobs enqueued.
func (s *Scanner) ScanAll(ctx context.Context, cfg config.Config) (int, error) {
	total := 0
	for _, dir := range cfg.SyncDirs {
		count, err := s.ScanDirectory(ctx, dir.SourcePath, dir.RemoteRoot, cfg.ExcludePatterns)
		if err != nil {
			return total, err
		}
		total += count
	}
	return total, nil
}

func (s *Scanner) scanFile(ctx context.Context, directory, remoteRoot, path string) (bool, error) {
	current, err := token.Compute(path)
	if err != nil {
		// The file can vanish mid-walk; nothing to reconcile then.
		logrus.WithField("path", path).WithError(err).Debug("Skipping file, token unavailable")
		return false, nil
	}

	stored, err := s.st.GetFileState(ctx, path)
	if err != nil {
		return false, err
	}
	if stored != nil && stored.ChangeToken == current {
		return false, nil
	}

	rel, err := paths.RelativeTo(directory, path)
	if err != nil {
		logrus.WithField("path", path).Debug("Path not within scan root")
		return false, nil
	}

	event := store.SyncEvent{
		EventType:   store.EventUpdate,
		LocalPath:   path,
		RemotePath:  drive.JoinPath(remoteRoot, rel),
		ChangeToken: &current,
	}
	if _, err := s.st.EnqueueJob(ctx, event); err != nil {
		return false, err
	}
	return true, nil
}
