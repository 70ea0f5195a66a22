// Package engine owns component lifecycle and the periodic loops that
// drive the pipeline: processor ticks, reconciliation, config reload and
// queue garbage collection. Control-plane signals written by the CLI are
// drained here and translated into state transitions.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rashomon-gh/proton-drive-sync/internal/config"
	"github.com/rashomon-gh/proton-drive-sync/internal/drive"
	"github.com/rashomon-gh/proton-drive-sync/internal/metrics"
	"github.com/rashomon-gh/proton-drive-sync/internal/processor"
	"github.com/rashomon-gh/proton-drive-sync/internal/scanner"
	"github.com/rashomon-gh/proton-drive-sync/internal/store"
	"github.com/rashomon-gh/proton-drive-sync/internal/watcher"
)

// State is the engine lifecycle position.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateError
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Periods of the engine's cooperative loops.
const (
	processorTickPeriod = time.Second
	reconcileTickPeriod = 5 * time.Minute
	configTickPeriod    = 30 * time.Second
	gcTickPeriod        = time.Hour
)

// claimBatchSize caps how many jobs one processor tick submits.
const claimBatchSize = 10

// reconcilePendingLimit skips reconciliation while the queue is busy.
const reconcilePendingLimit = 100

// syncedRetention is how long SYNCED rows stay before garbage
// collection.
const syncedRetention = 7 * 24 * time.Hour

// staleLeaseAge is how old a processing lease may get before the sweep
// reclaims it from a crashed worker.
const staleLeaseAge = time.Hour

// Status is the queue summary the CLI and dashboard surface.
type Status struct {
	State          State
	PendingJobs    int
	ProcessingJobs int
	SyncedJobs     int
	BlockedJobs    int
}

// Engine wires the watcher, scanner and processor to the shared store.
// It is the only component that knows about the others; none of them
// call back in.
type Engine struct {
	st    *store.Store
	cfg   *config.Manager
	watch *watcher.Watcher
	proc  *processor.Processor
	scan  *scanner.Scanner
	met   *metrics.Metrics

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New assembles an engine over an authenticated drive client.
func New(st *store.Store, cfg *config.Manager, client drive.Client, met *metrics.Metrics) *Engine {
	return &Engine{
		st:    st,
		cfg:   cfg,
		watch: watcher.New(st, cfg),
		proc:  processor.New(st, client, cfg, met),
		scan:  scanner.New(st),
		met:   met,
		state: StateIdle,
	}
}

// Start brings the engine to Running: watcher subscribed, periodic
// loops ticking, running flag set. Starting a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state == StateRunning {
		e.mu.Unlock()
		return nil
	}
	e.state = StateRunning
	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.mu.Unlock()

	logrus.Info("Starting sync engine")

	if err := e.watch.Start(loopCtx); err != nil {
		e.setState(StateError)
		cancel()
		return err
	}

	e.startLoop(loopCtx, processorTickPeriod, e.processorTick)
	e.startLoop(loopCtx, reconcileTickPeriod, e.reconcileTick)
	e.startLoop(loopCtx, configTickPeriod, e.configTick)
	e.startLoop(loopCtx, gcTickPeriod, e.gcTick)

	if err := e.st.SetFlag(loopCtx, store.FlagRunning); err != nil {
		logrus.WithError(err).Warn("Failed to set running flag")
	}

	logrus.Info("Sync engine started")
	return nil
}

// Stop transitions to Idle, stops the watcher and clears the running
// flag, then returns. The processor and reconciliation loops observe
// Idle on their next tick and skip work; the config reload and GC loops
// do not check the state and keep running until Close. In-flight job
// handlers are not cancelled. Close tears the loops down at process exit.
func (e *Engine) Stop(ctx context.Context) error {
	logrus.Info("Stopping sync engine")

	e.mu.Lock()
	if e.state == StateIdle {
		e.mu.Unlock()
		return nil
	}
	e.state = StateIdle
	e.mu.Unlock()

	if err := e.watch.Stop(); err != nil {
		logrus.WithError(err).Warn("Error stopping file watcher")
	}

	if err := e.st.ClearFlag(ctx, store.FlagRunning); err != nil {
		logrus.WithError(err).Warn("Failed to clear running flag")
	}

	logrus.Info("Sync engine stopped")
	return nil
}

// Close cancels the periodic loops and waits for them and any in-flight
// job handlers to finish. Safe to call after Stop; must not be called
// from inside a loop.
func (e *Engine) Close() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
}

// Pause keeps every loop ticking but claiming nothing.
func (e *Engine) Pause(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return nil
	}
	e.state = StatePaused
	e.mu.Unlock()

	if err := e.st.SetFlag(ctx, store.FlagPaused); err != nil {
		logrus.WithError(err).Warn("Failed to set paused flag")
	}
	logrus.Info("Sync engine paused")
	return nil
}

// Resume restores claiming after a pause.
func (e *Engine) Resume(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StatePaused {
		e.mu.Unlock()
		return nil
	}
	e.state = StateRunning
	e.mu.Unlock()

	if err := e.st.ClearFlag(ctx, store.FlagPaused); err != nil {
		logrus.WithError(err).Warn("Failed to clear paused flag")
	}
	logrus.Info("Sync engine resumed")
	return nil
}

// State returns the current lifecycle position.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Status returns the lifecycle position plus queue counts.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	counts, err := e.st.StatusCounts(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		State:          e.State(),
		PendingJobs:    counts.Pending,
		ProcessingJobs: counts.Processing,
		SyncedJobs:     counts.Synced,
		BlockedJobs:    counts.Blocked,
	}, nil
}

// Reconcile scans every configured root immediately, regardless of
// engine state.
func (e *Engine) Reconcile(ctx context.Context) (int, error) {
	logrus.Info("Running manual reconciliation")
	count, err := e.scan.ScanAll(ctx, e.cfg.Get())
	if err != nil {
		return count, err
	}
	e.met.AddScanEnqueued(count)
	logrus.WithField("changes", count).Info("Reconciliation complete")
	return count, nil
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// startLoop runs work on a fixed period until the engine context ends.
// The first tick fires after one full period, not immediately.
func (e *Engine) startLoop(ctx context.Context, period time.Duration, work func(context.Context)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				work(ctx)
			}
		}
	}()
}

// processorTick drains control signals, then claims and submits a batch
// of eligible jobs.
func (e *Engine) processorTick(ctx context.Context) {
	e.drainSignals(ctx)

	if e.State() != StateRunning {
		return
	}

	jobs, err := e.st.ClaimPending(ctx, claimBatchSize)
	if err != nil {
		logrus.WithError(err).Error("Error getting pending jobs")
		return
	}
	if len(jobs) == 0 {
		return
	}

	for _, job := range jobs {
		job := job
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.proc.ProcessJob(ctx, job); err != nil {
				logrus.WithField("job_id", job.ID).WithError(err).Error("Error processing job")
			}
		}()
	}
}

// reconcileTick scans all roots unless the queue is already busy.
func (e *Engine) reconcileTick(ctx context.Context) {
	if e.State() != StateRunning {
		return
	}

	pending, err := e.st.CountByStatus(ctx, store.StatusPending)
	if err != nil {
		logrus.WithError(err).Error("Error getting queue status")
		return
	}
	if pending > reconcilePendingLimit {
		logrus.WithField("pending", pending).Debug("Skipping reconciliation: queue too busy")
		return
	}

	cfg := e.cfg.Get()
	for _, dir := range cfg.SyncDirs {
		count, err := e.scan.ScanDirectory(ctx, dir.SourcePath, dir.RemoteRoot, cfg.ExcludePatterns)
		if err != nil {
			logrus.WithField("path", dir.SourcePath).WithError(err).Error("Error scanning directory")
			continue
		}
		e.met.AddScanEnqueued(count)
	}
	logrus.Info("Reconciliation scan complete")
}

// configTick hot-reloads the configuration on file mtime change.
func (e *Engine) configTick(ctx context.Context) {
	updated, err := e.cfg.CheckForUpdates()
	if err != nil {
		logrus.WithError(err).Error("Error checking configuration for updates")
		return
	}
	if updated {
		// The semaphore width is fixed at start; a restart applies a
		// new concurrency. Delete behavior and exclusions take effect
		// immediately.
		logrus.WithField("concurrency", e.cfg.Get().SyncConcurrency).Info("Processor concurrency updated")
	}
}

// gcTick removes aged SYNCED rows and reclaims stale processing leases.
func (e *Engine) gcTick(ctx context.Context) {
	if n, err := e.st.GCSynced(ctx, syncedRetention); err != nil {
		logrus.WithError(err).Error("Error garbage collecting synced jobs")
	} else if n > 0 {
		logrus.WithField("deleted", n).Info("Cleaned up old completed jobs")
	}

	if n, err := e.st.ClearStaleProcessing(ctx, staleLeaseAge); err != nil {
		logrus.WithError(err).Error("Error clearing stale processing leases")
	} else if n > 0 {
		logrus.WithField("cleared", n).Warn("Recovered stale processing leases")
	}
}

// drainSignals consumes all queued control signals in order and applies
// their transitions. Each signal is observed exactly once.
func (e *Engine) drainSignals(ctx context.Context) {
	signals, err := e.st.DrainSignals(ctx)
	if err != nil {
		logrus.WithError(err).Error("Error draining signals")
		return
	}

	for _, sig := range signals {
		e.met.IncSignal(sig)
		logrus.WithField("signal", sig).Info("Applying control signal")

		switch sig {
		case store.SignalStop:
			if err := e.Stop(ctx); err != nil {
				logrus.WithError(err).Error("Error applying stop signal")
			}
		case store.SignalPause:
			if err := e.Pause(ctx); err != nil {
				logrus.WithError(err).Error("Error applying pause signal")
			}
		case store.SignalResume:
			if err := e.Resume(ctx); err != nil {
				logrus.WithError(err).Error("Error applying resume signal")
			}
		default:
			logrus.WithField("signal", sig).Warn("Ignoring unrecognized signal")
		}
	}
}
