package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/scoutrun/scout/config"
	"github.com/scoutrun/scout/internal/store"
)

type fakeStorage struct {
	mu       sync.Mutex
	scouts   []store.Scout
	claims   []string
	claimErr map[string]error
	failed   map[string]string
	runs     []struct{ due, dispatched int }
}

func (f *fakeStorage) ListActiveScouts(ctx context.Context) ([]store.Scout, error) {
	return f.scouts, nil
}

func (f *fakeStorage) ClaimScout(ctx context.Context, scoutID string, snapshot json.RawMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.claimErr[scoutID]; err != nil {
		return "", err
	}
	f.claims = append(f.claims, scoutID)
	return "exec-" + scoutID, nil
}

func (f *fakeStorage) FailExecution(ctx context.Context, id, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed == nil {
		f.failed = map[string]string{}
	}
	f.failed[id] = msg
	return nil
}

func (f *fakeStorage) RecordSchedulerRun(ctx context.Context, dueCount, dispatched int, notes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, struct{ due, dispatched int }{dueCount, dispatched})
	return nil
}

type fakeRunner struct {
	mu   sync.Mutex
	runs []string
}

func (r *fakeRunner) Run(ctx context.Context, scout store.Scout, executionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, executionID)
	return nil
}

type failingPublisher struct{}

func (failingPublisher) Publish(ctx context.Context, executionID, scoutID string) error {
	return errors.New("stream unavailable")
}

func testScout(id string, freq string, lastRun *time.Time) store.Scout {
	return store.Scout{ID: id, UserID: "u1", Title: "t", Goal: "goal", Queries: []string{"q"}, Frequency: freq, IsActive: true, LastRunAt: lastRun}
}

func testCfg() config.SchedulerConfig {
	return config.SchedulerConfig{}.Normalize()
}

func TestTickDispatchesDueScouts(t *testing.T) {
	old := time.Now().Add(-200 * time.Hour)
	recent := time.Now().Add(-time.Minute)
	st := &fakeStorage{scouts: []store.Scout{
		testScout("due-never", FreqWeekly, nil),
		testScout("due-old", FreqWeekly, &old),
		testScout("not-due", FreqWeekly, &recent),
	}}
	r := &fakeRunner{}
	d := &Dispatcher{Store: st, Cfg: testCfg(), Runner: r}

	d.Tick(context.Background())
	if err := d.group.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}

	if len(st.claims) != 2 {
		t.Fatalf("claims = %v, want the two due scouts", st.claims)
	}
	if st.claims[0] != "due-never" || st.claims[1] != "due-old" {
		t.Errorf("claims = %v, want never-run first then oldest", st.claims)
	}
	if len(r.runs) != 2 {
		t.Errorf("runner invoked %d times, want 2", len(r.runs))
	}
	if len(st.runs) != 1 || st.runs[0].due != 2 || st.runs[0].dispatched != 2 {
		t.Errorf("scheduler run log = %+v, want due=2 dispatched=2", st.runs)
	}
}

func TestTickHonorsBatchCap(t *testing.T) {
	var scouts []store.Scout
	for i := 0; i < 30; i++ {
		scouts = append(scouts, testScout(string(rune('a'+i)), FreqWeekly, nil))
	}
	st := &fakeStorage{scouts: scouts}
	r := &fakeRunner{}
	cfg := testCfg()
	cfg.BatchSize = 20
	d := &Dispatcher{Store: st, Cfg: cfg, Runner: r}

	d.Tick(context.Background())
	if err := d.group.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}

	if len(st.claims) != 20 {
		t.Errorf("claimed %d scouts, want batch cap of 20", len(st.claims))
	}
	if st.runs[0].due != 30 || st.runs[0].dispatched != 20 {
		t.Errorf("run log = %+v, want due=30 dispatched=20", st.runs[0])
	}
}

func TestTickSkipsAlreadyRunning(t *testing.T) {
	st := &fakeStorage{
		scouts:   []store.Scout{testScout("busy", FreqWeekly, nil), testScout("free", FreqWeekly, nil)},
		claimErr: map[string]error{"busy": store.ErrAlreadyRunning},
	}
	r := &fakeRunner{}
	d := &Dispatcher{Store: st, Cfg: testCfg(), Runner: r}

	d.Tick(context.Background())
	if err := d.group.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}

	if len(st.claims) != 1 || st.claims[0] != "free" {
		t.Errorf("claims = %v, want only the free scout", st.claims)
	}
	if st.runs[0].dispatched != 1 {
		t.Errorf("dispatched = %d, want 1", st.runs[0].dispatched)
	}
}

func TestQueueDispatchFailureFailsExecution(t *testing.T) {
	st := &fakeStorage{scouts: []store.Scout{testScout("s1", FreqWeekly, nil)}}
	cfg := testCfg()
	cfg.DispatchMode = "queue"
	d := &Dispatcher{Store: st, Cfg: cfg, Publisher: failingPublisher{}}

	d.Tick(context.Background())

	if msg, ok := st.failed["exec-s1"]; !ok {
		t.Fatal("claimed execution should be failed when the publish fails")
	} else if msg == "" {
		t.Error("failure message should carry the publish error")
	}
	if st.runs[0].dispatched != 0 {
		t.Errorf("dispatched = %d, want 0", st.runs[0].dispatched)
	}
}
