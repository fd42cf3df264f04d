package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/scoutrun/scout/config"
)

// Reaper force-fails executions that have been running longer than the
// execution timeout. Crashed workers leave running rows behind; without the
// reaper those scouts would never be dispatched again.
type Reaper struct {
	Store  ReapStorage
	Cfg    config.SchedulerConfig
	Logger *log.Logger
}

// ReapStorage is the slice of the store the reaper needs.
type ReapStorage interface {
	ReapStuck(ctx context.Context, timeout time.Duration) ([]string, error)
	PruneSchedulerRuns(ctx context.Context, retention time.Duration) (int64, error)
}

// Start runs the reap loop until ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) error {
	if r.Logger == nil {
		r.Logger = log.New(log.Writer(), "[REAPER] ", log.LstdFlags)
	}
	ticker := time.NewTicker(r.Cfg.ReaperInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep reaps stuck executions and prunes old tick-log rows.
func (r *Reaper) Sweep(ctx context.Context) {
	ids, err := r.Store.ReapStuck(ctx, r.Cfg.ExecutionTimeout)
	if err != nil {
		r.Logger.Printf("reap stuck: %v", err)
	} else if len(ids) > 0 {
		reapedTotal.Add(float64(len(ids)))
		r.Logger.Printf("reaped %d stuck executions: %v", len(ids), ids)
	}

	if n, err := r.Store.PruneSchedulerRuns(ctx, r.Cfg.RunLogRetention); err != nil {
		r.Logger.Printf("prune scheduler runs: %v", err)
	} else if n > 0 {
		r.Logger.Printf("pruned %d scheduler run rows", n)
	}
}
