package engine

import (
	"context"
	"sync"
	"time"
)

// SyncJob periodically runs ForceSync and publishes non-empty reports
// on the engine's change stream. The job is idle until Start is called.
type SyncJob struct {
	engine *Engine

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSyncJob creates a SyncJob driving the given engine.
func NewSyncJob(e *Engine) *SyncJob {
	return &SyncJob{engine: e}
}

// Start stops any previously running job, then launches a background
// goroutine that force-syncs every interval. If interval is zero or
// negative it defaults to 5 minutes. The goroutine exits when ctx is
// cancelled or Stop is called.
func (j *SyncJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	j.Stop()

	j.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.wg.Add(1)
	j.mu.Unlock()

	go func() {
		defer j.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				j.syncOnce(jobCtx)
			}
		}
	}()
}

// Stop cancels the background goroutine's context and blocks until it
// has fully exited. Safe to call when the job is not running.
func (j *SyncJob) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	j.wg.Wait()
}

func (j *SyncJob) syncOnce(ctx context.Context) {
	changes, err := j.engine.ForceSync(ctx, false)
	if err != nil {
		j.engine.log.Err(err).Msg("periodic sync failed")
		return
	}

	// The consumer of the change stream commits the cursor once the
	// report is durably applied; committing here would break the
	// crash-consistency contract.
	if !changes.IsEmpty() {
		j.engine.emit(changes)
	}
}
