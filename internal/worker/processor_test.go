package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/scoutrun/scout/internal/queue/streams"
	"github.com/scoutrun/scout/internal/store"
)

type fakeQueue struct {
	acked []string
}

func (f *fakeQueue) Read(ctx context.Context, stream string, opts ...streams.ConsumerOption) ([]streams.Message, error) {
	return nil, nil
}

func (f *fakeQueue) Ack(ctx context.Context, stream string, ids ...string) error {
	f.acked = append(f.acked, ids...)
	return nil
}

func (f *fakeQueue) AutoClaim(ctx context.Context, stream string, minIdle time.Duration, start string, count int64) ([]streams.Message, string, error) {
	return nil, start, nil
}

type fakeWorkerStore struct {
	execs   map[string]store.Execution
	scouts  map[string]store.Scout
	execErr error
}

func (f *fakeWorkerStore) GetExecution(ctx context.Context, id string) (store.Execution, error) {
	if f.execErr != nil {
		return store.Execution{}, f.execErr
	}
	e, ok := f.execs[id]
	if !ok {
		return store.Execution{}, store.ErrNotFound
	}
	return e, nil
}

func (f *fakeWorkerStore) GetScoutByID(ctx context.Context, id string) (store.Scout, error) {
	s, ok := f.scouts[id]
	if !ok {
		return store.Scout{}, store.ErrNotFound
	}
	return s, nil
}

type countingRunner struct {
	runs []string
}

func (r *countingRunner) Run(ctx context.Context, scout store.Scout, executionID string) error {
	r.runs = append(r.runs, executionID)
	return nil
}

func triggerMessage(t *testing.T, id, execID, scoutID string) streams.Message {
	t.Helper()
	data, err := json.Marshal(streams.ExecutionTriggered{ExecutionID: execID, ScoutID: scoutID})
	if err != nil {
		t.Fatalf("marshal trigger: %v", err)
	}
	return streams.Message{ID: id, Envelope: streams.Envelope{
		EventID:   "evt-" + id,
		EventType: streams.EventExecTrigger,
		Data:      data,
	}}
}

func discardLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestHandleRunsRunningExecution(t *testing.T) {
	q := &fakeQueue{}
	r := &countingRunner{}
	p := &Processor{
		Store: &fakeWorkerStore{
			execs:  map[string]store.Execution{"exec-1": {ID: "exec-1", ScoutID: "scout-1", Status: store.StatusRunning}},
			scouts: map[string]store.Scout{"scout-1": {ID: "scout-1", Goal: "goal"}},
		},
		Consumer: q,
		Runner:   r,
	}
	p.Logger = discardLogger()

	p.handle(context.Background(), triggerMessage(t, "1-0", "exec-1", "scout-1"))

	if len(r.runs) != 1 || r.runs[0] != "exec-1" {
		t.Errorf("runs = %v, want [exec-1]", r.runs)
	}
	if len(q.acked) != 1 {
		t.Errorf("acked = %v, want one ack", q.acked)
	}
}

func TestHandleRedeliveredTerminalIsNoop(t *testing.T) {
	q := &fakeQueue{}
	r := &countingRunner{}
	p := &Processor{
		Store: &fakeWorkerStore{
			execs: map[string]store.Execution{"exec-1": {ID: "exec-1", ScoutID: "scout-1", Status: store.StatusCompleted}},
		},
		Consumer: q,
		Runner:   r,
	}
	p.Logger = discardLogger()

	p.handle(context.Background(), triggerMessage(t, "1-0", "exec-1", "scout-1"))

	if len(r.runs) != 0 {
		t.Errorf("terminal execution must not be re-run, got %v", r.runs)
	}
	if len(q.acked) != 1 {
		t.Error("redelivered terminal trigger should still be acked")
	}
}

func TestHandleMissingExecutionDropped(t *testing.T) {
	// The scout was deleted after the trigger was published, so the
	// execution is gone for good. Repeated deliveries must each end in an
	// ack rather than leaving the message pending for autoclaim.
	q := &fakeQueue{}
	r := &countingRunner{}
	p := &Processor{Store: &fakeWorkerStore{}, Consumer: q, Runner: r}
	p.Logger = discardLogger()

	for i := 0; i < 3; i++ {
		p.handle(context.Background(), triggerMessage(t, "1-0", "exec-gone", "scout-gone"))
	}

	if len(r.runs) != 0 {
		t.Errorf("missing execution must not run anything, got %v", r.runs)
	}
	if len(q.acked) != 3 {
		t.Errorf("acked = %v, want every delivery acked", q.acked)
	}
}

func TestHandleTransientStoreErrorLeftUnacked(t *testing.T) {
	q := &fakeQueue{}
	r := &countingRunner{}
	p := &Processor{
		Store:    &fakeWorkerStore{execErr: errors.New("connection refused")},
		Consumer: q,
		Runner:   r,
	}
	p.Logger = discardLogger()

	p.handle(context.Background(), triggerMessage(t, "1-0", "exec-1", "scout-1"))

	if len(r.runs) != 0 {
		t.Errorf("runs = %v, want none while the store is down", r.runs)
	}
	if len(q.acked) != 0 {
		t.Errorf("acked = %v, want the trigger left pending for retry", q.acked)
	}
}

func TestHandleMalformedTriggerAcked(t *testing.T) {
	q := &fakeQueue{}
	r := &countingRunner{}
	p := &Processor{Store: &fakeWorkerStore{}, Consumer: q, Runner: r}
	p.Logger = discardLogger()

	msg := streams.Message{ID: "1-0", Envelope: streams.Envelope{
		EventID: "evt", EventType: "something.else", Data: json.RawMessage(`{}`),
	}}
	p.handle(context.Background(), msg)

	if len(r.runs) != 0 {
		t.Error("malformed trigger must not run anything")
	}
	if len(q.acked) != 1 {
		t.Error("malformed trigger should be acked so it cannot wedge the group")
	}
}
