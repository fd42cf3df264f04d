package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Store wraps the Postgres connection. It is the only shared mutable resource
// between the dispatcher, the engine and the reaper; all cross-actor
// coordination goes through its atomic transition statements.
type Store struct {
	DB *sql.DB
}

// Execution statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Step kinds recorded in the execution trace.
const (
	StepThink     = "think"
	StepSearch    = "search"
	StepRead      = "read"
	StepSummarize = "summarize"
)

// ErrTimedOut is the fixed message stamped on reaped executions.
const ErrTimedOut = "execution timed out"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyRunning indicates another execution holds the scout's running slot.
	ErrAlreadyRunning = errors.New("scout already has a running execution")
	// ErrNotRunning indicates a terminal-state transition found no running execution.
	ErrNotRunning = errors.New("execution is not running")
	// ErrDimensionMismatch indicates the query vector's dimensions differ
	// from the stored embeddings. A caller problem, not a server one.
	ErrDimensionMismatch = errors.New("query vector dimensions do not match stored embeddings")
)

// Scout is a standing search instruction owned by a user.
type Scout struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Title     string          `json:"title"`
	Goal      string          `json:"goal"`
	Location  json.RawMessage `json:"location,omitempty"`
	Queries   []string        `json:"queries"`
	Frequency string          `json:"frequency"`
	IsActive  bool            `json:"is_active"`
	LastRunAt *time.Time      `json:"last_run_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Execution is one timed run of a scout's agent loop.
type Execution struct {
	ID             string          `json:"id"`
	ScoutID        string          `json:"scout_id"`
	Status         string          `json:"status"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	Error          *string         `json:"error,omitempty"`
	Summary        string          `json:"summary,omitempty"`
	Embedding      []float32       `json:"-"`
	ConfigSnapshot json.RawMessage `json:"config_snapshot,omitempty"`
}

// Step is one recorded think/search/read/summarize action within an execution.
// Steps are append-only and ordered by Seq.
type Step struct {
	ID          string          `json:"id"`
	ExecutionID string          `json:"execution_id"`
	Seq         int             `json:"seq"`
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Preferences holds per-user settings, including the embedding model and
// dimension in effect for similarity search.
type Preferences struct {
	UserID              string    `json:"user_id"`
	EmbeddingModel      string    `json:"embedding_model"`
	EmbeddingDimensions int       `json:"embedding_dimensions"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// SchedulerRun is one row of the housekeeping tick log.
type SchedulerRun struct {
	ID         int64     `json:"id"`
	TickedAt   time.Time `json:"ticked_at"`
	DueCount   int       `json:"due_count"`
	Dispatched int       `json:"dispatched"`
	Notes      string    `json:"notes,omitempty"`
}

// ExecutionHit is a semantic search result over completed execution summaries.
type ExecutionHit struct {
	ExecutionID string    `json:"execution_id"`
	ScoutID     string    `json:"scout_id"`
	Summary     string    `json:"summary"`
	Distance    float64   `json:"distance"`
	CompletedAt time.Time `json:"completed_at"`
}

// StoredEmbedding pairs a completed execution with its summary vector. Used by
// the in-memory ranking path for backends without native vector ordering.
type StoredEmbedding struct {
	ExecutionID string
	ScoutID     string
	Summary     string
	Vector      []float32
	CompletedAt time.Time
}

// New constructs the Store from an explicit Postgres DSN.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// User operations

func (s *Store) CreateUser(ctx context.Context, email, hash string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2) RETURNING id`, email, hash).Scan(&id)
	return id, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	return
}

// Preferences operations

func (s *Store) UpsertPreferences(ctx context.Context, p Preferences) error {
	if p.UserID == "" {
		return fmt.Errorf("user_id required")
	}
	if p.EmbeddingDimensions <= 0 {
		return fmt.Errorf("embedding_dimensions must be > 0")
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO user_preferences (user_id, embedding_model, embedding_dimensions, updated_at)
VALUES ($1,$2,$3,NOW())
ON CONFLICT (user_id) DO UPDATE SET
  embedding_model = EXCLUDED.embedding_model,
  embedding_dimensions = EXCLUDED.embedding_dimensions,
  updated_at = NOW();
`, p.UserID, p.EmbeddingModel, p.EmbeddingDimensions)
	return err
}

func (s *Store) GetPreferences(ctx context.Context, userID string) (Preferences, bool, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT user_id, embedding_model, embedding_dimensions, updated_at
FROM user_preferences WHERE user_id=$1
`, userID)
	var p Preferences
	if err := row.Scan(&p.UserID, &p.EmbeddingModel, &p.EmbeddingDimensions, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Preferences{}, false, nil
		}
		return Preferences{}, false, err
	}
	return p, true, nil
}

// Scout operations

func (s *Store) CreateScout(ctx context.Context, sc Scout) (string, error) {
	if strings.TrimSpace(sc.UserID) == "" {
		return "", fmt.Errorf("user_id required")
	}
	loc := sc.Location
	if len(loc) == 0 {
		loc = json.RawMessage("{}")
	}
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO scouts (user_id, title, goal, location, queries, frequency, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id
`, sc.UserID, sc.Title, sc.Goal, []byte(loc), pq.Array(sc.Queries), sc.Frequency, sc.IsActive).Scan(&id)
	return id, err
}

func (s *Store) GetScout(ctx context.Context, id, userID string) (Scout, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT id, user_id, title, goal, location, queries, frequency, is_active, last_run_at, created_at, updated_at
FROM scouts WHERE id=$1 AND user_id=$2
`, id, userID)
	return scanScout(row)
}

// GetScoutByID loads a scout without a user scope. Internal dispatch and
// worker paths only; HTTP handlers must use GetScout.
func (s *Store) GetScoutByID(ctx context.Context, id string) (Scout, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT id, user_id, title, goal, location, queries, frequency, is_active, last_run_at, created_at, updated_at
FROM scouts WHERE id=$1
`, id)
	return scanScout(row)
}

func (s *Store) ListScouts(ctx context.Context, userID string) ([]Scout, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, title, goal, location, queries, frequency, is_active, last_run_at, created_at, updated_at
FROM scouts WHERE user_id=$1 ORDER BY created_at DESC
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectScouts(rows)
}

// ListActiveScouts returns every active scout, ordered oldest last-run first
// with never-run scouts leading. The dispatcher applies the due predicate and
// the batch cap on top of this ordering.
func (s *Store) ListActiveScouts(ctx context.Context) ([]Scout, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, title, goal, location, queries, frequency, is_active, last_run_at, created_at, updated_at
FROM scouts WHERE is_active
ORDER BY last_run_at ASC NULLS FIRST, created_at ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectScouts(rows)
}

func (s *Store) UpdateScout(ctx context.Context, sc Scout) error {
	loc := sc.Location
	if len(loc) == 0 {
		loc = json.RawMessage("{}")
	}
	res, err := s.DB.ExecContext(ctx, `
UPDATE scouts SET title=$3, goal=$4, location=$5, queries=$6, frequency=$7, is_active=$8, updated_at=NOW()
WHERE id=$1 AND user_id=$2
`, sc.ID, sc.UserID, sc.Title, sc.Goal, []byte(loc), pq.Array(sc.Queries), sc.Frequency, sc.IsActive)
	if err != nil {
		return err
	}
	return requireRows(res)
}

func (s *Store) SetScoutActive(ctx context.Context, id, userID string, active bool) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE scouts SET is_active=$3, updated_at=NOW() WHERE id=$1 AND user_id=$2`, id, userID, active)
	if err != nil {
		return err
	}
	return requireRows(res)
}

// DeleteScout removes a scout; executions and steps go with it by cascade.
func (s *Store) DeleteScout(ctx context.Context, id, userID string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM scouts WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	return requireRows(res)
}

// ClaimScout atomically creates a running execution for the scout and stamps
// last_run_at, in one transaction. The INSERT only succeeds when no other
// execution for the scout is in running state, so two concurrent dispatch
// ticks can never both claim the same scout; the partial unique index on
// (scout_id) WHERE status='running' backs the same invariant at the schema
// level. Returns ErrAlreadyRunning on a lost race.
func (s *Store) ClaimScout(ctx context.Context, scoutID string, snapshot json.RawMessage) (string, error) {
	if scoutID == "" {
		return "", fmt.Errorf("scout_id required")
	}
	if len(snapshot) == 0 {
		snapshot = json.RawMessage("{}")
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var execID string
	err = tx.QueryRowContext(ctx, `
INSERT INTO scout_executions (scout_id, status, config_snapshot)
SELECT $1, 'running', $2
WHERE NOT EXISTS (
  SELECT 1 FROM scout_executions WHERE scout_id=$1 AND status='running'
)
RETURNING id
`, scoutID, []byte(snapshot)).Scan(&execID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrAlreadyRunning
	}
	if err != nil {
		// Two claims can both pass the NOT EXISTS check under concurrency;
		// the loser then trips the partial unique index instead.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return "", ErrAlreadyRunning
		}
		return "", err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE scouts SET last_run_at=NOW(), updated_at=NOW() WHERE id=$1`, scoutID); err != nil {
		return "", err
	}
	if err = tx.Commit(); err != nil {
		return "", err
	}
	return execID, nil
}

// Execution operations

func (s *Store) GetExecution(ctx context.Context, id string) (Execution, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT id, scout_id, status, started_at, completed_at, error, summary, summary_embedding::text, config_snapshot
FROM scout_executions WHERE id=$1
`, id)
	var (
		e         Execution
		completed sql.NullTime
		errMsg    sql.NullString
		summary   sql.NullString
		vecText   sql.NullString
		snapshot  []byte
	)
	if err := row.Scan(&e.ID, &e.ScoutID, &e.Status, &e.StartedAt, &completed, &errMsg, &summary, &vecText, &snapshot); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Execution{}, ErrNotFound
		}
		return Execution{}, err
	}
	if completed.Valid {
		ts := completed.Time
		e.CompletedAt = &ts
	}
	if errMsg.Valid {
		v := errMsg.String
		e.Error = &v
	}
	if summary.Valid {
		e.Summary = summary.String
	}
	if vecText.Valid && vecText.String != "" {
		vec, err := decodeVectorLiteral(vecText.String)
		if err != nil {
			return Execution{}, err
		}
		e.Embedding = vec
	}
	e.ConfigSnapshot = append(json.RawMessage{}, snapshot...)
	return e, nil
}

func (s *Store) ListExecutions(ctx context.Context, scoutID string, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, scout_id, status, started_at, completed_at, error, summary
FROM scout_executions WHERE scout_id=$1
ORDER BY started_at DESC LIMIT $2
`, scoutID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Execution
	for rows.Next() {
		var (
			e         Execution
			completed sql.NullTime
			errMsg    sql.NullString
			summary   sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ScoutID, &e.Status, &e.StartedAt, &completed, &errMsg, &summary); err != nil {
			return nil, err
		}
		if completed.Valid {
			ts := completed.Time
			e.CompletedAt = &ts
		}
		if errMsg.Valid {
			v := errMsg.String
			e.Error = &v
		}
		if summary.Valid {
			e.Summary = summary.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CompleteExecution transitions a running execution to completed with its
// final summary and embedding. Compare-and-set on status: a terminal
// execution is left untouched and ErrNotRunning is returned.
func (s *Store) CompleteExecution(ctx context.Context, id, summary string, vector []float32) error {
	var (
		res sql.Result
		err error
	)
	if len(vector) > 0 {
		var lit string
		lit, err = encodeVectorLiteral(vector)
		if err != nil {
			return err
		}
		res, err = s.DB.ExecContext(ctx, `
UPDATE scout_executions
SET status='completed', completed_at=NOW(), summary=$2, summary_embedding=$3::vector
WHERE id=$1 AND status='running'
`, id, summary, lit)
	} else {
		res, err = s.DB.ExecContext(ctx, `
UPDATE scout_executions
SET status='completed', completed_at=NOW(), summary=$2
WHERE id=$1 AND status='running'
`, id, summary)
	}
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotRunning
	}
	return nil
}

// FailExecution transitions a running execution to failed with an error
// message. Same compare-and-set semantics as CompleteExecution.
func (s *Store) FailExecution(ctx context.Context, id, msg string) error {
	res, err := s.DB.ExecContext(ctx, `
UPDATE scout_executions
SET status='failed', completed_at=NOW(), error=$2
WHERE id=$1 AND status='running'
`, id, msg)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotRunning
	}
	return nil
}

// ReapStuck force-fails running executions whose started_at is older than the
// timeout and returns the affected execution IDs. This is the backstop that
// frees a scout's running slot after a crashed or hung engine.
func (s *Store) ReapStuck(ctx context.Context, timeout time.Duration) ([]string, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive")
	}
	rows, err := s.DB.QueryContext(ctx, `
UPDATE scout_executions
SET status='failed', completed_at=NOW(), error=$1
WHERE status='running' AND started_at < NOW() - make_interval(secs => $2)
RETURNING id
`, ErrTimedOut, int64(timeout/time.Second))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Step operations

// AppendStep records one agent action. Sequence numbers are assigned inside
// the INSERT so they are strictly increasing per execution, and the step is
// durable before the engine moves on.
func (s *Store) AppendStep(ctx context.Context, executionID, kind string, payload json.RawMessage) (int, error) {
	if executionID == "" {
		return 0, fmt.Errorf("execution_id required")
	}
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	var seq int
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO execution_steps (execution_id, seq, kind, payload)
VALUES ($1, (SELECT COALESCE(MAX(seq),0)+1 FROM execution_steps WHERE execution_id=$1), $2, $3)
RETURNING seq
`, executionID, kind, []byte(payload)).Scan(&seq)
	return seq, err
}

func (s *Store) ListSteps(ctx context.Context, executionID string) ([]Step, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, execution_id, seq, kind, payload, created_at
FROM execution_steps WHERE execution_id=$1 ORDER BY seq ASC
`, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Step
	for rows.Next() {
		var (
			st      Step
			payload []byte
		)
		if err := rows.Scan(&st.ID, &st.ExecutionID, &st.Seq, &st.Kind, &payload, &st.CreatedAt); err != nil {
			return nil, err
		}
		st.Payload = append(json.RawMessage{}, payload...)
		out = append(out, st)
	}
	return out, rows.Err()
}

// Similarity search

// SearchExecutionEmbeddings ranks completed executions for the user by cosine
// distance to the query vector using pgvector ordering. Ties break by most
// recent completed_at. scoutID narrows the scope when non-empty.
func (s *Store) SearchExecutionEmbeddings(ctx context.Context, userID, scoutID string, vector []float32, topK int) ([]ExecutionHit, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector must not be empty")
	}
	if topK <= 0 {
		topK = 5
	}
	lit, err := encodeVectorLiteral(vector)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT e.id, e.scout_id, e.summary, e.completed_at, e.summary_embedding <=> $1::vector AS distance
FROM scout_executions e
JOIN scouts s ON s.id = e.scout_id
WHERE s.user_id = $2
  AND ($3 = '' OR e.scout_id = $3)
  AND e.status = 'completed'
  AND e.summary_embedding IS NOT NULL
ORDER BY e.summary_embedding <=> $1::vector ASC, e.completed_at DESC
LIMIT $4
`, lit, userID, scoutID, topK)
	if err != nil {
		// pgvector rejects the <=> with mismatched dimensions; surface it
		// the same way the in-memory ranking path does.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && strings.Contains(pqErr.Message, "different vector dimensions") {
			return nil, ErrDimensionMismatch
		}
		return nil, err
	}
	defer rows.Close()
	var out []ExecutionHit
	for rows.Next() {
		var h ExecutionHit
		if err := rows.Scan(&h.ExecutionID, &h.ScoutID, &h.Summary, &h.CompletedAt, &h.Distance); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ListExecutionEmbeddings returns every completed execution with a stored
// vector in scope. Feeds the in-memory full-scan ranking path, which must
// produce results identical to SearchExecutionEmbeddings.
func (s *Store) ListExecutionEmbeddings(ctx context.Context, userID, scoutID string) ([]StoredEmbedding, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT e.id, e.scout_id, e.summary, e.summary_embedding::text, e.completed_at
FROM scout_executions e
JOIN scouts s ON s.id = e.scout_id
WHERE s.user_id = $1
  AND ($2 = '' OR e.scout_id = $2)
  AND e.status = 'completed'
  AND e.summary_embedding IS NOT NULL
`, userID, scoutID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StoredEmbedding
	for rows.Next() {
		var (
			rec     StoredEmbedding
			vecText string
		)
		if err := rows.Scan(&rec.ExecutionID, &rec.ScoutID, &rec.Summary, &vecText, &rec.CompletedAt); err != nil {
			return nil, err
		}
		vec, err := decodeVectorLiteral(vecText)
		if err != nil {
			return nil, err
		}
		rec.Vector = vec
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Scheduler run log (housekeeping, not correctness-critical)

func (s *Store) RecordSchedulerRun(ctx context.Context, dueCount, dispatched int, notes string) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO scheduler_runs (ticked_at, due_count, dispatched, notes) VALUES (NOW(),$1,$2,$3)
`, dueCount, dispatched, notes)
	return err
}

func (s *Store) PruneSchedulerRuns(ctx context.Context, retention time.Duration) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
DELETE FROM scheduler_runs WHERE ticked_at < NOW() - make_interval(secs => $1)
`, int64(retention/time.Second))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// helpers

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanScout(row rowScanner) (Scout, error) {
	var (
		sc      Scout
		loc     []byte
		lastRun sql.NullTime
	)
	err := row.Scan(&sc.ID, &sc.UserID, &sc.Title, &sc.Goal, &loc, pq.Array(&sc.Queries), &sc.Frequency, &sc.IsActive, &lastRun, &sc.CreatedAt, &sc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Scout{}, ErrNotFound
		}
		return Scout{}, err
	}
	sc.Location = append(json.RawMessage{}, loc...)
	if lastRun.Valid {
		ts := lastRun.Time
		sc.LastRunAt = &ts
	}
	return sc, nil
}

func collectScouts(rows *sql.Rows) ([]Scout, error) {
	var out []Scout
	for rows.Next() {
		sc, err := scanScout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func requireRows(res sql.Result) error {
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeVectorLiteral(vec []float32) (string, error) {
	if len(vec) == 0 {
		return "", fmt.Errorf("vector must not be empty")
	}
	var builder strings.Builder
	builder.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	builder.WriteByte(']')
	return builder.String(), nil
}

func decodeVectorLiteral(lit string) ([]float32, error) {
	lit = strings.TrimSpace(lit)
	if lit == "" {
		return nil, fmt.Errorf("empty vector literal")
	}
	lit = strings.TrimPrefix(lit, "[")
	lit = strings.TrimSuffix(lit, "]")
	parts := strings.Split(lit, ",")
	vec := make([]float32, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		f, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return nil, fmt.Errorf("parse vector value %q: %w", value, err)
		}
		vec = append(vec, float32(f))
	}
	return vec, nil
}
