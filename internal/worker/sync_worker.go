// Package worker runs the census sync on a schedule.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"treecensus/internal/log"
	"treecensus/internal/services"
)

// Syncer performs one census sync.
type Syncer interface {
	Run(ctx context.Context) (services.SyncResult, error)
}

// SyncWorker runs a Syncer once on start and then every interval. A failed
// sync is logged and retried on the next tick.
type SyncWorker struct {
	syncer   Syncer
	interval time.Duration
	logger   *log.Logger

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	stopOnce *sync.Once
	doneCh   chan struct{}

	runs     int
	failures int
	lastErr  error
	lastRun  services.SyncResult
}

func NewSyncWorker(syncer Syncer, interval time.Duration, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncWorker{
		syncer:   syncer,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Start begins the sync loop. Returns an error if already running or if the
// interval is not positive.
func (w *SyncWorker) Start(ctx context.Context) error {
	if w.interval <= 0 {
		return fmt.Errorf("invalid sync interval %v", w.interval)
	}

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("sync worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.stopOnce = &sync.Once{}
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	w.logger.InfoContext(ctx, "Sync worker started", "interval", w.interval)
	return nil
}

// Stop signals the loop and waits for the current sync to finish. If ctx
// ends first the loop keeps draining and Stop may be called again.
func (w *SyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stopCh, stopOnce, doneCh := w.stopCh, w.stopOnce, w.doneCh
	w.mu.Unlock()

	stopOnce.Do(func() { close(stopCh) })

	select {
	case <-doneCh:
		w.logger.InfoContext(ctx, "Sync worker stopped gracefully")
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Sync worker stop timed out")
		return ctx.Err()
	}
}

// Done is closed when the loop exits, either by Stop or by ctx.
func (w *SyncWorker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doneCh
}

func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Stats reports how many syncs ran, how many failed, and the last error.
func (w *SyncWorker) Stats() (runs, failures int, lastErr error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs, w.failures, w.lastErr
}

// LastResult returns the result of the most recent sync.
func (w *SyncWorker) LastResult() services.SyncResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRun
}

func (w *SyncWorker) runLoop(ctx context.Context) {
	w.mu.Lock()
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(doneCh)
	}()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *SyncWorker) runOnce(ctx context.Context) {
	start := time.Now()
	res, err := w.syncer.Run(ctx)

	w.mu.Lock()
	w.runs++
	w.lastRun = res
	w.lastErr = err
	if err != nil {
		w.failures++
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.ErrorContext(ctx, "Census sync failed",
			log.FieldError, err,
			log.FieldSnapshotID, res.Snapshot.ID,
			"duration", time.Since(start))
		return
	}
	w.logger.DebugContext(ctx, "Census sync finished",
		log.FieldSnapshotID, res.Snapshot.ID,
		"duration", time.Since(start))
}
