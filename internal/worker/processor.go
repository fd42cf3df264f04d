// Package worker consumes execution triggers from the queue and runs them
// through the agent engine. Used when the scheduler dispatches in queue mode;
// inline mode bypasses this package entirely.
package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/scoutrun/scout/internal/queue/streams"
	"github.com/scoutrun/scout/internal/store"
)

var (
	triggersProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scout_worker_triggers_processed_total",
		Help: "Execution triggers run to completion by this worker.",
	})
	triggersSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scout_worker_triggers_skipped_total",
		Help: "Triggers dropped without running: terminal or deleted executions.",
	})
	triggerErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scout_worker_trigger_errors_total",
		Help: "Triggers whose execution returned an error.",
	})
)

// StoreAPI captures the store methods required by the worker.
type StoreAPI interface {
	GetExecution(ctx context.Context, id string) (store.Execution, error)
	GetScoutByID(ctx context.Context, id string) (store.Scout, error)
}

// Runner executes one claimed execution; in production this is the engine.
type Runner interface {
	Run(ctx context.Context, scout store.Scout, executionID string) error
}

// Queue is the consumer surface the processor needs; *streams.Consumer
// satisfies it.
type Queue interface {
	Read(ctx context.Context, stream string, opts ...streams.ConsumerOption) ([]streams.Message, error)
	Ack(ctx context.Context, stream string, ids ...string) error
	AutoClaim(ctx context.Context, stream string, minIdle time.Duration, start string, count int64) ([]streams.Message, string, error)
}

// Processor drives execution by consuming trigger events.
type Processor struct {
	Logger   *log.Logger
	Store    StoreAPI
	Consumer Queue
	Runner   Runner

	// ClaimIdle is how long a pending message may sit with a dead consumer
	// before this worker reclaims it.
	ClaimIdle time.Duration
}

// Start blocks, continuously processing triggers until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) error {
	if p.Logger == nil {
		p.Logger = log.New(log.Writer(), "[WORKER] ", log.LstdFlags)
	}
	if p.ClaimIdle <= 0 {
		p.ClaimIdle = 5 * time.Minute
	}
	p.Logger.Printf("worker starting; consuming stream %s", streams.TriggerStream)

	claimCursor := "0-0"
	for {
		select {
		case <-ctx.Done():
			p.Logger.Printf("worker stopping: %v", ctx.Err())
			return nil
		default:
		}

		// Pick up triggers abandoned by crashed workers first.
		claimed, next, err := p.Consumer.AutoClaim(ctx, streams.TriggerStream, p.ClaimIdle, claimCursor, 16)
		if err != nil {
			p.Logger.Printf("autoclaim: %v", err)
		} else {
			claimCursor = next
			for _, msg := range claimed {
				p.handle(ctx, msg)
			}
		}

		msgs, err := p.Consumer.Read(ctx, streams.TriggerStream, streams.WithBlock(5*time.Second), streams.WithCount(16))
		if err != nil {
			p.Logger.Printf("read stream: %v", err)
			time.Sleep(time.Second)
			continue
		}
		for _, msg := range msgs {
			p.handle(ctx, msg)
		}
	}
}

// handle runs one trigger. Redelivery of a terminal execution acks without
// running anything, which makes trigger processing idempotent.
func (p *Processor) handle(ctx context.Context, msg streams.Message) {
	trig, err := streams.DecodeTrigger(msg.Envelope)
	if err != nil {
		p.Logger.Printf("message %s: %v", msg.ID, err)
		p.ack(ctx, msg.ID)
		return
	}

	exec, err := p.Store.GetExecution(ctx, trig.ExecutionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The scout was deleted between publish and consume and its
			// executions cascaded with it. Ack, or autoclaim recirculates
			// the dead trigger forever.
			triggersSkipped.Inc()
			p.Logger.Printf("execution %s no longer exists, dropping trigger", trig.ExecutionID)
			p.ack(ctx, msg.ID)
			return
		}
		p.Logger.Printf("load execution %s: %v", trig.ExecutionID, err)
		// Leave unacked; a later delivery retries once the store recovers.
		return
	}
	if exec.Status != store.StatusRunning {
		triggersSkipped.Inc()
		p.ack(ctx, msg.ID)
		return
	}

	scout, err := p.Store.GetScoutByID(ctx, trig.ScoutID)
	if err != nil {
		p.Logger.Printf("load scout %s: %v", trig.ScoutID, err)
		if errors.Is(err, store.ErrNotFound) {
			p.ack(ctx, msg.ID)
		}
		return
	}

	if err := p.Runner.Run(ctx, scout, trig.ExecutionID); err != nil {
		triggerErrors.Inc()
		p.Logger.Printf("execution %s: %v", trig.ExecutionID, err)
	} else {
		triggersProcessed.Inc()
	}
	// The engine has already moved the execution to a terminal state (or the
	// reaper will); redelivery would be a no-op either way.
	p.ack(ctx, msg.ID)
}

func (p *Processor) ack(ctx context.Context, id string) {
	if err := p.Consumer.Ack(ctx, streams.TriggerStream, id); err != nil {
		p.Logger.Printf("ack %s: %v", id, err)
	}
}
