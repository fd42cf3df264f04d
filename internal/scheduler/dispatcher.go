package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/scoutrun/scout/config"
	"github.com/scoutrun/scout/internal/store"
)

// Runner executes a claimed execution to completion. The inline dispatch mode
// points this at the agent engine; tests point it at a fake.
type Runner interface {
	Run(ctx context.Context, scout store.Scout, executionID string) error
}

// Publisher hands a claimed execution to the queue for a worker to pick up.
type Publisher interface {
	Publish(ctx context.Context, executionID, scoutID string) error
}

// Storage is the slice of the store the dispatcher needs.
type Storage interface {
	ListActiveScouts(ctx context.Context) ([]store.Scout, error)
	ClaimScout(ctx context.Context, scoutID string, snapshot json.RawMessage) (string, error)
	FailExecution(ctx context.Context, id, msg string) error
	RecordSchedulerRun(ctx context.Context, dueCount, dispatched int, notes string) error
}

// Snapshot is the scout configuration frozen into an execution at claim time.
// The engine reads this, never the live scout row, so an edit mid-run cannot
// change a running execution's behavior.
type Snapshot struct {
	Goal      string          `json:"goal"`
	Queries   []string        `json:"queries"`
	Location  json.RawMessage `json:"location,omitempty"`
	Frequency string          `json:"frequency"`
}

// Dispatcher finds due scouts on a fixed tick and starts executions for them.
type Dispatcher struct {
	Store     Storage
	Rdb       *redis.Client
	Cfg       config.SchedulerConfig
	Logger    *log.Logger
	Runner    Runner
	Publisher Publisher

	group *errgroup.Group
}

// Start runs the tick loop until ctx is cancelled, then waits for in-flight
// inline executions to finish.
func (d *Dispatcher) Start(ctx context.Context) error {
	ticker := time.NewTicker(d.Cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if d.group == nil {
				return nil
			}
			return d.group.Wait()
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick scans active scouts, dispatches the due ones up to the batch cap, and
// records a housekeeping row. Errors are logged, never fatal; the next tick
// retries naturally.
func (d *Dispatcher) Tick(ctx context.Context) {
	if d.Logger == nil {
		d.Logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	if d.group == nil {
		d.group = &errgroup.Group{}
		d.group.SetLimit(d.Cfg.BatchSize)
	}
	ticksTotal.Inc()
	now := time.Now()

	scouts, err := d.Store.ListActiveScouts(ctx)
	if err != nil {
		d.Logger.Printf("list active scouts: %v", err)
		return
	}

	due := make([]store.Scout, 0, len(scouts))
	for _, sc := range scouts {
		if Eligible(sc.Title, sc.Goal, sc.Queries) && IsDue(sc.Frequency, sc.LastRunAt, now) {
			due = append(due, sc)
		}
	}

	batch := due
	if len(batch) > d.Cfg.BatchSize {
		batch = batch[:d.Cfg.BatchSize]
	}

	dispatched := 0
	for _, sc := range batch {
		if err := d.dispatch(ctx, sc); err != nil {
			if errors.Is(err, store.ErrAlreadyRunning) || errors.Is(err, errLockHeld) {
				skippedRunning.Inc()
				continue
			}
			dispatchErrors.Inc()
			d.Logger.Printf("dispatch scout %s: %v", sc.ID, err)
			continue
		}
		dispatched++
	}
	dispatchedTotal.Add(float64(dispatched))

	notes := ""
	if len(due) > len(batch) {
		notes = fmt.Sprintf("deferred %d past batch cap", len(due)-len(batch))
	}
	if err := d.Store.RecordSchedulerRun(ctx, len(due), dispatched, notes); err != nil {
		d.Logger.Printf("record scheduler run: %v", err)
	}
}

var errLockHeld = errors.New("dispatch lock held")

func (d *Dispatcher) dispatch(ctx context.Context, sc store.Scout) error {
	// Distributed lock keeps two dispatcher replicas off the same scout.
	// The claim below is the real guarantee; this just avoids churn.
	if d.Rdb != nil {
		lockKey := "sched:lock:" + sc.ID
		ok, err := d.Rdb.SetNX(ctx, lockKey, "1", d.Cfg.LockTTL).Result()
		if err != nil {
			d.Logger.Printf("redis lock %s: %v", sc.ID, err)
		} else if !ok {
			return errLockHeld
		}
	}

	snap, err := json.Marshal(Snapshot{
		Goal:      sc.Goal,
		Queries:   sc.Queries,
		Location:  sc.Location,
		Frequency: sc.Frequency,
	})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	execID, err := d.Store.ClaimScout(ctx, sc.ID, snap)
	if err != nil {
		return err
	}

	if d.Cfg.DispatchMode == "queue" {
		if err := d.Publisher.Publish(ctx, execID, sc.ID); err != nil {
			// The claim succeeded but nobody will run it; fail the
			// execution so the scout is not wedged until the reaper.
			if ferr := d.Store.FailExecution(ctx, execID, "dispatch: "+err.Error()); ferr != nil {
				d.Logger.Printf("fail undispatched execution %s: %v", execID, ferr)
			}
			return fmt.Errorf("publish trigger: %w", err)
		}
		return nil
	}

	d.group.Go(func() error {
		if err := d.Runner.Run(context.WithoutCancel(ctx), sc, execID); err != nil {
			d.Logger.Printf("execution %s: %v", execID, err)
		}
		return nil
	})
	return nil
}
