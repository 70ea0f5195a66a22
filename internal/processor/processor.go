// Package processor drains the job queue against the remote service and
// drives the job state machine: SYNCED on success, bounded-backoff retry
// on transient failure, BLOCKED after the retry budget runs out.
package processor

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/rashomon-gh/proton-drive-sync/internal/config"
	"github.com/rashomon-gh/proton-drive-sync/internal/drive"
	"github.com/rashomon-gh/proton-drive-sync/internal/metrics"
	"github.com/rashomon-gh/proton-drive-sync/internal/store"
	"github.com/rashomon-gh/proton-drive-sync/internal/syncerr"
	"github.com/rashomon-gh/proton-drive-sync/internal/token"
)

// retryBaseDelay seeds the exponential backoff: 60, 120, 240, 480, 960s.
const retryBaseDelay = time.Minute

// defaultMIMEType is used when the extension resolves to nothing.
const defaultMIMEType = "application/octet-stream"

// Processor executes sync jobs with bounded concurrency.
type Processor struct {
	st     *store.Store
	client drive.Client
	cfg    *config.Manager
	sem    *semaphore.Weighted
	met    *metrics.Metrics
}

// New creates a processor whose in-flight jobs are bounded by the
// configured sync concurrency.
func New(st *store.Store, client drive.Client, cfg *config.Manager, met *metrics.Metrics) *Processor {
	return &Processor{
		st:     st,
		client: client,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(int64(cfg.Get().SyncConcurrency)),
		met:    met,
	}
}

// ProcessJob runs one claimed job to an outcome. It acquires a
// concurrency permit and the per-path lease first; when another worker
// holds the lease the job is left untouched for a later tick.
func (p *Processor) ProcessJob(ctx context.Context, job store.Job) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %v", syncerr.ErrInvalidState, err)
	}
	defer p.sem.Release(1)

	acquired, err := p.st.TryAcquireLease(ctx, job.LocalPath)
	if err != nil {
		return err
	}
	if !acquired {
		logrus.WithFields(logrus.Fields{
			"job_id": job.ID,
			"path":   job.LocalPath,
		}).Debug("Path lease held by another worker, deferring job")
		return nil
	}

	if err := p.st.MarkProcessing(ctx, job.ID); err != nil {
		p.st.ReleaseLease(ctx, job.LocalPath)
		return err
	}

	start := time.Now()
	runErr := p.dispatch(ctx, job)

	if err := p.st.ReleaseLease(ctx, job.LocalPath); err != nil {
		logrus.WithField("path", job.LocalPath).WithError(err).Warn("Failed to release processing lease")
	}
	p.met.ObserveJob(start)

	if runErr == nil {
		return p.finishSuccess(ctx, job)
	}
	return p.finishFailure(ctx, job, runErr)
}

// AvailableCapacity reports how many permits are free right now.
func (p *Processor) AvailableCapacity() int {
	width := int64(p.cfg.Get().SyncConcurrency)
	var free int64
	for free = 0; free < width; free++ {
		if !p.sem.TryAcquire(1) {
			break
		}
	}
	p.sem.Release(free)
	return int(free)
}

// RefreshSession re-authenticates the remote client with its refresh
// token.
func (p *Processor) RefreshSession(ctx context.Context) error {
	return p.client.RefreshSession(ctx)
}

func (p *Processor) dispatch(ctx context.Context, job store.Job) error {
	switch job.EventType {
	case store.EventCreateFile:
		return p.processCreateFile(ctx, job)
	case store.EventCreateDir:
		return p.processCreateDir(ctx, job)
	case store.EventUpdate:
		return p.processUpdate(ctx, job)
	case store.EventDelete:
		return p.processDelete(ctx, job)
	default:
		return fmt.Errorf("%w: unknown event type: %s", syncerr.ErrSync, job.EventType)
	}
}

func (p *Processor) finishSuccess(ctx context.Context, job store.Job) error {
	if err := p.st.MarkSynced(ctx, job.ID); err != nil {
		return err
	}

	if job.EventType != store.EventDelete {
		tok := ""
		if job.ChangeToken != nil {
			tok = *job.ChangeToken
		} else if fresh, err := token.Compute(job.LocalPath); err == nil {
			tok = fresh
		}
		if tok != "" {
			if err := p.st.UpsertFileState(ctx, job.LocalPath, tok); err != nil {
				logrus.WithField("path", job.LocalPath).WithError(err).Warn("Failed to update file state")
			}
		}
	} else {
		if err := p.st.DeleteFileState(ctx, job.LocalPath); err != nil {
			logrus.WithField("path", job.LocalPath).WithError(err).Warn("Failed to delete file state")
		}
	}

	p.met.IncSynced()
	logrus.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"local_path":  job.LocalPath,
		"remote_path": job.RemotePath,
	}).Info("Synced")
	return nil
}

func (p *Processor) finishFailure(ctx context.Context, job store.Job, runErr error) error {
	logrus.WithFields(logrus.Fields{
		"job_id":    job.ID,
		"path":      job.LocalPath,
		"n_retries": job.NRetries,
	}).WithError(runErr).Error("Failed to sync")

	if job.NRetries < store.MaxRetries {
		delay := retryBaseDelay * time.Duration(1<<uint(job.NRetries))
		retryAt := time.Now().UTC().Add(delay)
		if err := p.st.BumpRetry(ctx, job.ID, retryAt, runErr.Error()); err != nil {
			return err
		}
		p.met.IncRetried()
		logrus.WithFields(logrus.Fields{
			"job_id":   job.ID,
			"retry_at": retryAt.Format(time.RFC3339),
		}).Warn("Job scheduled for retry")
	} else {
		if err := p.st.MarkBlocked(ctx, job.ID, runErr.Error()); err != nil {
			return err
		}
		p.met.IncBlocked()
		logrus.WithField("job_id", job.ID).Warn("Job blocked after exhausting retries")
	}
	return runErr
}

func (p *Processor) processCreateFile(ctx context.Context, job store.Job) error {
	if _, err := os.Stat(job.LocalPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", syncerr.ErrFileNotFound, job.LocalPath)
		}
		return fmt.Errorf("%w: %v", syncerr.ErrIO, err)
	}

	content, err := os.ReadFile(job.LocalPath)
	if err != nil {
		return fmt.Errorf("%w: %v", syncerr.ErrIO, err)
	}

	parentUID, err := p.resolveParentNode(ctx, drive.ParentPath(job.RemotePath))
	if err != nil {
		return err
	}

	result, err := p.client.CreateFile(ctx, parentUID, drive.Filename(job.RemotePath),
		content, detectMIMEType(job.LocalPath))
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%w: %s", syncerr.ErrSync, orUnknown(result.Error))
	}

	if result.NodeUID != "" {
		err := p.st.UpsertNodeMapping(ctx, store.NodeMapping{
			LocalPath:     job.LocalPath,
			RemotePath:    job.RemotePath,
			NodeUID:       result.NodeUID,
			ParentNodeUID: parentUID,
			IsDirectory:   false,
		})
		if err != nil {
			logrus.WithField("path", job.LocalPath).WithError(err).Warn("Failed to store node mapping")
		}
	}
	return nil
}

func (p *Processor) processCreateDir(ctx context.Context, job store.Job) error {
	parentUID, err := p.resolveParentNode(ctx, drive.ParentPath(job.RemotePath))
	if err != nil {
		return err
	}

	result, err := p.client.CreateFolder(ctx, parentUID, drive.Filename(job.RemotePath))
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%w: %s", syncerr.ErrSync, orUnknown(result.Error))
	}

	if result.NodeUID != "" {
		err := p.st.UpsertNodeMapping(ctx, store.NodeMapping{
			LocalPath:     job.LocalPath,
			RemotePath:    job.RemotePath,
			NodeUID:       result.NodeUID,
			ParentNodeUID: parentUID,
			IsDirectory:   true,
		})
		if err != nil {
			logrus.WithField("path", job.LocalPath).WithError(err).Warn("Failed to store node mapping")
		}
	}
	return nil
}

// processUpdate replaces the remote content as delete-then-create; the
// remote has no in-place update. The two calls are not atomic: the
// mapping is dropped right after the delete so a crash in between
// leaves no stale identity and reconciliation re-uploads the file.
func (p *Processor) processUpdate(ctx context.Context, job store.Job) error {
	if _, err := os.Stat(job.LocalPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", syncerr.ErrFileNotFound, job.LocalPath)
		}
		return fmt.Errorf("%w: %v", syncerr.ErrIO, err)
	}

	existing, err := p.st.GetNodeMapping(ctx, job.LocalPath, job.RemotePath)
	if err != nil {
		return err
	}
	if existing == nil {
		// Never created remotely, or a prior partial update removed
		// the mapping: fall through to create semantics.
		return p.processCreateFile(ctx, job)
	}

	if err := p.client.DeleteNode(ctx, existing.NodeUID); err != nil && !errors.Is(err, drive.ErrNodeNotFound) {
		return err
	}
	if err := p.st.DeleteNodeMapping(ctx, job.LocalPath, job.RemotePath); err != nil {
		logrus.WithField("path", job.LocalPath).WithError(err).Warn("Failed to drop node mapping")
	}

	content, err := os.ReadFile(job.LocalPath)
	if err != nil {
		return fmt.Errorf("%w: %v", syncerr.ErrIO, err)
	}

	result, err := p.client.CreateFile(ctx, existing.ParentNodeUID,
		drive.Filename(job.RemotePath), content, detectMIMEType(job.LocalPath))
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%w: %s", syncerr.ErrSync, orUnknown(result.Error))
	}

	if result.NodeUID != "" {
		err := p.st.UpsertNodeMapping(ctx, store.NodeMapping{
			LocalPath:     job.LocalPath,
			RemotePath:    job.RemotePath,
			NodeUID:       result.NodeUID,
			ParentNodeUID: existing.ParentNodeUID,
			IsDirectory:   false,
		})
		if err != nil {
			logrus.WithField("path", job.LocalPath).WithError(err).Warn("Failed to store node mapping")
		}
	}
	return nil
}

// processDelete is idempotent: a missing mapping or an already-deleted
// remote node both count as success.
func (p *Processor) processDelete(ctx context.Context, job store.Job) error {
	existing, err := p.st.GetNodeMapping(ctx, job.LocalPath, job.RemotePath)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}

	switch p.cfg.Get().RemoteDeleteBehavior {
	case config.DeletePermanent:
		err = p.client.DeleteNodePermanent(ctx, existing.NodeUID)
	default:
		err = p.client.DeleteNode(ctx, existing.NodeUID)
	}
	if err != nil && !errors.Is(err, drive.ErrNodeNotFound) {
		return err
	}

	return p.st.DeleteNodeMapping(ctx, job.LocalPath, job.RemotePath)
}

// resolveParentNode maps a remote parent path to a node uid. The parent
// chain is not walked: unknown parents resolve to the account root, so
// nested local directories flatten remotely. Kept as-is from the
// original behavior.
func (p *Processor) resolveParentNode(_ context.Context, _ string) (string, error) {
	return p.client.RootID(), nil
}

// detectMIMEType resolves a content type from the file extension only;
// content sniffing would mean an extra read of every upload.
func detectMIMEType(localPath string) string {
	mimeType := mime.TypeByExtension(filepath.Ext(localPath))
	if mimeType == "" {
		return defaultMIMEType
	}
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}

func orUnknown(message string) string {
	if message == "" {
		return "unknown error"
	}
	return message
}
