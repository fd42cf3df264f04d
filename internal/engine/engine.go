// Package engine runs the agent loop behind a scout execution: think about
// the next move, search the web, read pages, and finally summarize what was
// found. Every action is recorded as an execution step, and the loop is
// bounded by a step ceiling and a diminishing-returns stall limit.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/scoutrun/scout/config"
	"github.com/scoutrun/scout/internal/scheduler"
	"github.com/scoutrun/scout/internal/store"
	"github.com/scoutrun/scout/provider"
	"github.com/scoutrun/scout/tools/web_fetch"
	"github.com/scoutrun/scout/tools/web_search"
	"github.com/scoutrun/scout/utils"
)

// Storage is the slice of the store the engine needs.
type Storage interface {
	GetExecution(ctx context.Context, id string) (store.Execution, error)
	AppendStep(ctx context.Context, executionID, kind string, payload json.RawMessage) (int, error)
	CompleteExecution(ctx context.Context, id, summary string, vector []float32) error
	FailExecution(ctx context.Context, id, msg string) error
}

// Engine drives one execution at a time. Safe for concurrent Run calls; all
// per-run state lives on the stack.
type Engine struct {
	Provider provider.Provider
	Searcher web_search.WebSearcher
	Fetcher  web_fetch.WebFetcher
	Store    Storage
	Cfg      config.EngineConfig
	Logger   *log.Logger
}

// runState is the working memory of a single execution.
type runState struct {
	goal       string
	seeds      []string
	transcript []string
	candidates map[string]string // url -> title, from search results
	visitedQ   map[string]bool
	visitedURL map[string]bool
	notebook   *Notebook
	steps      int
	stalls     int
	pagesRead  int
}

// Run executes the agent loop for a claimed execution. Re-delivery of an
// already-terminal execution is a no-op. Any provider or storage error marks
// the execution failed; exhausting the step ceiling does not.
func (e *Engine) Run(ctx context.Context, scout store.Scout, executionID string) error {
	if e.Logger == nil {
		e.Logger = log.New(log.Writer(), "[ENGINE] ", log.LstdFlags)
	}

	exec, err := e.Store.GetExecution(ctx, executionID)
	if err != nil {
		return fmt.Errorf("load execution: %w", err)
	}
	if exec.Status != store.StatusRunning {
		e.Logger.Printf("execution %s already %s, skipping", executionID, exec.Status)
		return nil
	}

	snap := scheduler.Snapshot{Goal: scout.Goal, Queries: scout.Queries}
	if len(exec.ConfigSnapshot) > 0 {
		if err := json.Unmarshal(exec.ConfigSnapshot, &snap); err != nil {
			return e.fail(ctx, executionID, fmt.Errorf("decode snapshot: %w", err))
		}
	}

	notebook, err := NewNotebook()
	if err != nil {
		return e.fail(ctx, executionID, fmt.Errorf("create notebook: %w", err))
	}
	defer notebook.Close()

	st := &runState{
		goal:       snap.Goal,
		seeds:      snap.Queries,
		candidates: make(map[string]string),
		visitedQ:   make(map[string]bool),
		visitedURL: make(map[string]bool),
		notebook:   notebook,
	}

	// Soft wall-clock budget, kept below the reaper's hard timeout. When
	// the remaining time no longer covers the summarize step's two
	// provider calls, exploration stops and the report gets written.
	var softDeadline time.Time
	if e.Cfg.RunTimeout > 0 {
		softDeadline = time.Now().Add(e.Cfg.RunTimeout)
	}

	for st.steps < e.Cfg.MaxSteps {
		// Reserve the last slot for summarize so the run always ends
		// with a report, even when the ceiling is hit.
		forced := st.steps == e.Cfg.MaxSteps-1 || st.stalls >= e.Cfg.StallLimit
		if !softDeadline.IsZero() && time.Until(softDeadline) < 2*e.Cfg.StepTimeout {
			forced = true
		}

		var dec decision
		if forced {
			dec = decision{Action: actionSummarize, Reason: "loop bound reached"}
		} else {
			dec, err = e.think(ctx, st)
			if err != nil {
				return e.fail(ctx, executionID, fmt.Errorf("think: %w", err))
			}
		}

		switch dec.Action {
		case actionSearch:
			err = e.stepSearch(ctx, executionID, st, dec)
		case actionRead:
			err = e.stepRead(ctx, executionID, st, dec)
		case actionSummarize:
			return e.stepSummarize(ctx, executionID, st, dec)
		default:
			err = e.stepStalled(ctx, executionID, st, dec, "unknown action")
		}
		if err != nil {
			return e.fail(ctx, executionID, err)
		}
	}

	// Unreachable with MaxSteps >= 1, kept as a backstop.
	return e.stepSummarize(ctx, executionID, st, decision{Action: actionSummarize, Reason: "loop bound reached"})
}

func (e *Engine) fail(ctx context.Context, executionID string, err error) error {
	if ferr := e.Store.FailExecution(ctx, executionID, err.Error()); ferr != nil {
		e.Logger.Printf("fail execution %s: %v", executionID, ferr)
	}
	return err
}

func (e *Engine) think(ctx context.Context, st *runState) (decision, error) {
	ctx, cancel := context.WithTimeout(ctx, e.Cfg.StepTimeout)
	defer cancel()

	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", st.goal)
	if len(st.seeds) > 0 {
		fmt.Fprintf(&b, "Suggested starting queries: %s\n", strings.Join(st.seeds, "; "))
	}
	if len(st.transcript) > 0 {
		b.WriteString("\nWhat you have done so far:\n")
		for _, line := range st.transcript {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}
	if unread := st.unreadCandidates(); len(unread) > 0 {
		b.WriteString("\nUnread result URLs:\n")
		for _, u := range unread {
			fmt.Fprintf(&b, "- %s (%s)\n", u, st.candidates[u])
		}
	}
	fmt.Fprintf(&b, "\nSteps used: %d of %d. Decide your next action.\n", st.steps, e.Cfg.MaxSteps)

	var dec decision
	err := e.Provider.CompleteJSON(ctx, []provider.Message{
		{Role: "system", Content: thinkSystemPrompt},
		{Role: "user", Content: b.String()},
	}, &dec)
	return dec, err
}

func (e *Engine) stepSearch(ctx context.Context, executionID string, st *runState, dec decision) error {
	q := strings.TrimSpace(dec.Query)
	if q == "" || st.visitedQ[q] {
		return e.stepStalled(ctx, executionID, st, dec, "repeated or empty query")
	}
	st.visitedQ[q] = true

	sctx, cancel := context.WithTimeout(ctx, e.Cfg.StepTimeout)
	results, err := e.Searcher.Discover(sctx, q, e.Cfg.SearchResults, nil, 0)
	cancel()
	if err != nil {
		return fmt.Errorf("search %q: %w", q, err)
	}

	fresh := 0
	for _, r := range results {
		if r.URL == "" || st.visitedURL[r.URL] {
			continue
		}
		if _, seen := st.candidates[r.URL]; !seen {
			fresh++
		}
		st.candidates[r.URL] = r.Title
	}
	if fresh == 0 {
		st.stalls++
	} else {
		st.stalls = 0
	}

	payload, _ := json.Marshal(map[string]any{
		"query": q, "reason": dec.Reason, "results": results,
	})
	if _, err := e.Store.AppendStep(ctx, executionID, store.StepSearch, payload); err != nil {
		return fmt.Errorf("append search step: %w", err)
	}
	st.steps++
	st.transcript = append(st.transcript, fmt.Sprintf("searched %q, %d results (%d new)", q, len(results), fresh))
	return nil
}

func (e *Engine) stepRead(ctx context.Context, executionID string, st *runState, dec decision) error {
	url := strings.TrimSpace(dec.URL)
	if _, known := st.candidates[url]; url == "" || !known || st.visitedURL[url] {
		return e.stepStalled(ctx, executionID, st, dec, "unknown or already-read url")
	}
	st.visitedURL[url] = true

	fctx, cancel := context.WithTimeout(ctx, e.Cfg.StepTimeout)
	page, err := e.Fetcher.Exec(fctx, url)
	cancel()
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}

	text := utils.Truncate(page.Text, e.Cfg.MaxPageChars)
	if page.Status == 200 && text != "" {
		if err := st.notebook.Add(url, page.Title, text); err != nil {
			return fmt.Errorf("index page %s: %w", url, err)
		}
		st.pagesRead++
		st.stalls = 0
	} else {
		st.stalls++
	}

	payload, _ := json.Marshal(map[string]any{
		"url": url, "reason": dec.Reason, "title": page.Title,
		"status": page.Status, "chars": len(text),
	})
	if _, err := e.Store.AppendStep(ctx, executionID, store.StepRead, payload); err != nil {
		return fmt.Errorf("append read step: %w", err)
	}
	st.steps++
	st.transcript = append(st.transcript, fmt.Sprintf("read %s (status %d, %d chars)", url, page.Status, len(text)))
	return nil
}

// stepStalled records an unproductive decision as a think step and bumps the
// stall counter. Still consumes a step so a looping model cannot spin forever.
func (e *Engine) stepStalled(ctx context.Context, executionID string, st *runState, dec decision, note string) error {
	st.stalls++
	payload, _ := json.Marshal(map[string]any{"decision": dec, "note": note})
	if _, err := e.Store.AppendStep(ctx, executionID, store.StepThink, payload); err != nil {
		return fmt.Errorf("append think step: %w", err)
	}
	st.steps++
	st.transcript = append(st.transcript, "discarded decision: "+note)
	return nil
}

func (e *Engine) stepSummarize(ctx context.Context, executionID string, st *runState, dec decision) error {
	material := e.collectMaterial(st)

	var summary string
	if material == "" {
		summary = fmt.Sprintf("No useful material was found for the goal %q this run.", st.goal)
	} else {
		sctx, cancel := context.WithTimeout(ctx, e.Cfg.StepTimeout)
		var err error
		summary, err = e.Provider.Complete(sctx, []provider.Message{
			{Role: "system", Content: summarizeSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Goal: %s\n\nCollected material:\n%s", st.goal, material)},
		})
		cancel()
		if err != nil {
			return e.fail(ctx, executionID, fmt.Errorf("summarize: %w", err))
		}
	}

	ectx, cancel := context.WithTimeout(ctx, e.Cfg.StepTimeout)
	vecs, err := e.Provider.Embed(ectx, []string{summary})
	cancel()
	if err != nil {
		return e.fail(ctx, executionID, fmt.Errorf("embed summary: %w", err))
	}
	var vec []float32
	if len(vecs) > 0 {
		vec = vecs[0]
	}

	payload, _ := json.Marshal(map[string]any{
		"reason": dec.Reason, "pages_read": st.pagesRead, "summary_chars": len(summary),
	})
	if _, err := e.Store.AppendStep(ctx, executionID, store.StepSummarize, payload); err != nil {
		return e.fail(ctx, executionID, fmt.Errorf("append summarize step: %w", err))
	}
	st.steps++

	if err := e.Store.CompleteExecution(ctx, executionID, summary, vec); err != nil {
		return fmt.Errorf("complete execution: %w", err)
	}
	e.Logger.Printf("execution %s completed in %d steps (%d pages)", executionID, st.steps, st.pagesRead)
	return nil
}

// collectMaterial pulls the notebook fragments most relevant to the goal and
// seed queries, deduplicated, capped to keep the summarize prompt bounded.
func (e *Engine) collectMaterial(st *runState) string {
	queries := append([]string{st.goal}, st.seeds...)
	seen := make(map[string]bool)
	var b strings.Builder
	for _, q := range queries {
		for _, chunk := range st.notebook.Recall(q, 4) {
			if seen[chunk.DocID] {
				continue
			}
			seen[chunk.DocID] = true
			fmt.Fprintf(&b, "[%s] %s\n%s\n\n", chunk.URL, chunk.Title, chunk.Text)
			if b.Len() > e.Cfg.MaxPageChars {
				return b.String()
			}
		}
	}
	return b.String()
}

func (st *runState) unreadCandidates() []string {
	var out []string
	for u := range st.candidates {
		if !st.visitedURL[u] {
			out = append(out, u)
		}
	}
	return out
}
