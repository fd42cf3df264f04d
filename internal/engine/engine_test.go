package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/scoutrun/scout/config"
	"github.com/scoutrun/scout/internal/store"
	"github.com/scoutrun/scout/provider"
	fetchmodels "github.com/scoutrun/scout/tools/web_fetch/models"
	searchmodels "github.com/scoutrun/scout/tools/web_search/models"
)

type scriptedProvider struct {
	decisions   []decision
	idx         int
	completeErr error
}

func (p *scriptedProvider) Complete(ctx context.Context, messages []provider.Message) (string, error) {
	if p.completeErr != nil {
		return "", p.completeErr
	}
	return "summary of findings", nil
}

func (p *scriptedProvider) CompleteJSON(ctx context.Context, messages []provider.Message, out interface{}) error {
	if p.idx >= len(p.decisions) {
		return errors.New("script exhausted")
	}
	dec := p.decisions[p.idx]
	p.idx++
	*(out.(*decision)) = dec
	return nil
}

func (p *scriptedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

type fakeSearcher struct {
	calls []string
}

func (s *fakeSearcher) Discover(ctx context.Context, q string, k int, sites []string, recency int) ([]searchmodels.Result, error) {
	s.calls = append(s.calls, q)
	return []searchmodels.Result{
		{Title: "Result for " + q, URL: "https://example.com/" + q, Snippet: "snippet"},
	}, nil
}

type fakeFetcher struct {
	calls []string
}

func (f *fakeFetcher) Exec(ctx context.Context, url string) (fetchmodels.Result, error) {
	f.calls = append(f.calls, url)
	return fetchmodels.Result{
		URL: url, Title: "Page", Status: 200,
		Text: "gadget prices dropped again this week according to the page",
	}, nil
}

type fakeEngineStore struct {
	exec      store.Execution
	steps     []store.Step
	completed bool
	summary   string
	vector    []float32
	failedMsg string
}

func (f *fakeEngineStore) GetExecution(ctx context.Context, id string) (store.Execution, error) {
	return f.exec, nil
}

func (f *fakeEngineStore) AppendStep(ctx context.Context, executionID, kind string, payload json.RawMessage) (int, error) {
	f.steps = append(f.steps, store.Step{ExecutionID: executionID, Seq: len(f.steps) + 1, Kind: kind, Payload: payload})
	return len(f.steps), nil
}

func (f *fakeEngineStore) CompleteExecution(ctx context.Context, id, summary string, vector []float32) error {
	f.completed = true
	f.summary = summary
	f.vector = vector
	return nil
}

func (f *fakeEngineStore) FailExecution(ctx context.Context, id, msg string) error {
	f.failedMsg = msg
	return nil
}

func runningExec() store.Execution {
	return store.Execution{
		ID: "exec-1", ScoutID: "scout-1", Status: store.StatusRunning,
		ConfigSnapshot: json.RawMessage(`{"goal":"track gadget prices","queries":["gadget prices"]}`),
	}
}

func newTestEngine(p provider.Provider, st Storage, cfg config.EngineConfig) *Engine {
	return &Engine{
		Provider: p,
		Searcher: &fakeSearcher{},
		Fetcher:  &fakeFetcher{},
		Store:    st,
		Cfg:      cfg.Normalize(),
	}
}

func TestRunSearchReadSummarize(t *testing.T) {
	prov := &scriptedProvider{decisions: []decision{
		{Action: actionSearch, Query: "gadget prices this week"},
		{Action: actionRead, URL: "https://example.com/gadget prices this week"},
		{Action: actionSummarize, Reason: "enough material"},
	}}
	st := &fakeEngineStore{exec: runningExec()}
	e := newTestEngine(prov, st, config.EngineConfig{})

	if err := e.Run(context.Background(), store.Scout{ID: "scout-1"}, "exec-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	kinds := stepKinds(st.steps)
	want := []string{store.StepSearch, store.StepRead, store.StepSummarize}
	if fmt.Sprint(kinds) != fmt.Sprint(want) {
		t.Errorf("step kinds = %v, want %v", kinds, want)
	}
	if !st.completed {
		t.Fatal("execution should be completed")
	}
	if st.summary == "" {
		t.Error("completed execution must carry a summary")
	}
	if len(st.vector) != 3 {
		t.Errorf("summary embedding length = %d, want 3", len(st.vector))
	}
	if st.failedMsg != "" {
		t.Errorf("unexpected failure: %s", st.failedMsg)
	}
}

func TestRunStepCeilingCompletes(t *testing.T) {
	// The model never volunteers a summary; every decision is a fresh
	// search. The loop must cut it off at the ceiling and still complete.
	var decisions []decision
	for i := 0; i < 20; i++ {
		decisions = append(decisions, decision{Action: actionSearch, Query: fmt.Sprintf("query %d", i)})
	}
	prov := &scriptedProvider{decisions: decisions}
	st := &fakeEngineStore{exec: runningExec()}
	e := newTestEngine(prov, st, config.EngineConfig{MaxSteps: 10})

	if err := e.Run(context.Background(), store.Scout{ID: "scout-1"}, "exec-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(st.steps) != 10 {
		t.Errorf("recorded %d steps, want exactly the ceiling of 10", len(st.steps))
	}
	if st.steps[len(st.steps)-1].Kind != store.StepSummarize {
		t.Errorf("last step = %s, want summarize", st.steps[len(st.steps)-1].Kind)
	}
	if !st.completed {
		t.Error("hitting the ceiling must complete, not fail, the execution")
	}
	if st.failedMsg != "" {
		t.Errorf("hitting the ceiling must not fail the execution, got %q", st.failedMsg)
	}
}

func TestRunTimeBudgetForcesSummary(t *testing.T) {
	// A near-exhausted wall-clock budget must end the run with a summary
	// step well before the reaper's hard timeout, even though the model
	// keeps asking for more searches and the step ceiling is far away.
	var decisions []decision
	for i := 0; i < 20; i++ {
		decisions = append(decisions, decision{Action: actionSearch, Query: fmt.Sprintf("query %d", i)})
	}
	prov := &scriptedProvider{decisions: decisions}
	st := &fakeEngineStore{exec: runningExec()}
	e := newTestEngine(prov, st, config.EngineConfig{MaxSteps: 50, RunTimeout: time.Millisecond})

	if err := e.Run(context.Background(), store.Scout{ID: "scout-1"}, "exec-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(st.steps) != 1 || st.steps[0].Kind != store.StepSummarize {
		t.Errorf("steps = %v, want a single summarize once the budget is spent", stepKinds(st.steps))
	}
	if !st.completed {
		t.Error("spending the time budget must complete, not fail, the execution")
	}
	if st.failedMsg != "" {
		t.Errorf("unexpected failure: %s", st.failedMsg)
	}
}

func TestRunRepeatedQueriesStallOut(t *testing.T) {
	// Same query over and over: each repeat is a discarded decision, and
	// after the stall limit the engine summarizes what it has.
	var decisions []decision
	for i := 0; i < 10; i++ {
		decisions = append(decisions, decision{Action: actionSearch, Query: "same query"})
	}
	prov := &scriptedProvider{decisions: decisions}
	st := &fakeEngineStore{exec: runningExec()}
	e := newTestEngine(prov, st, config.EngineConfig{MaxSteps: 12, StallLimit: 3})

	if err := e.Run(context.Background(), store.Scout{ID: "scout-1"}, "exec-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !st.completed {
		t.Fatal("stalled run should still complete with a summary")
	}
	// One real search, then think steps for the repeats, then summarize.
	kinds := stepKinds(st.steps)
	if kinds[0] != store.StepSearch {
		t.Errorf("first step = %s, want search", kinds[0])
	}
	thinks := 0
	for _, k := range kinds {
		if k == store.StepThink {
			thinks++
		}
	}
	if thinks != 3 {
		t.Errorf("recorded %d discarded-decision steps, want stall limit of 3", thinks)
	}
	if kinds[len(kinds)-1] != store.StepSummarize {
		t.Errorf("last step = %s, want summarize", kinds[len(kinds)-1])
	}
}

func TestRunTerminalExecutionIsNoop(t *testing.T) {
	st := &fakeEngineStore{exec: store.Execution{ID: "exec-1", Status: store.StatusCompleted}}
	prov := &scriptedProvider{}
	e := newTestEngine(prov, st, config.EngineConfig{})

	if err := e.Run(context.Background(), store.Scout{ID: "scout-1"}, "exec-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(st.steps) != 0 || st.completed || st.failedMsg != "" {
		t.Error("re-running a terminal execution must change nothing")
	}
}

func TestRunThinkErrorFailsExecution(t *testing.T) {
	prov := &scriptedProvider{} // empty script: first think errors
	st := &fakeEngineStore{exec: runningExec()}
	e := newTestEngine(prov, st, config.EngineConfig{})

	if err := e.Run(context.Background(), store.Scout{ID: "scout-1"}, "exec-1"); err == nil {
		t.Fatal("Run should surface the provider error")
	}
	if st.failedMsg == "" {
		t.Error("provider failure must mark the execution failed")
	}
	if st.completed {
		t.Error("failed execution must not be completed")
	}
}

func stepKinds(steps []store.Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Kind
	}
	return out
}
