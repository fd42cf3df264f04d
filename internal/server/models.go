package server

import "encoding/json"

// HTTPError is the unified error body returned by the API.
type HTTPError struct {
	Error string `json:"error"`
}

type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type ScoutRequest struct {
	Title     string          `json:"title"`
	Goal      string          `json:"goal"`
	Location  json.RawMessage `json:"location,omitempty"`
	Queries   []string        `json:"queries"`
	Frequency string          `json:"frequency"`
	IsActive  *bool           `json:"is_active,omitempty"`
}

type RecallRequest struct {
	Query   string `json:"query"`
	ScoutID string `json:"scout_id,omitempty"`
	TopK    int    `json:"top_k,omitempty"`
	// Mode selects the ranking path: "db" (default) orders in Postgres,
	// "memory" does a full cosine scan in process. Results are identical.
	Mode string `json:"mode,omitempty"`
}

type RecallHit struct {
	ExecutionID string  `json:"execution_id"`
	ScoutID     string  `json:"scout_id"`
	Summary     string  `json:"summary"`
	Distance    float64 `json:"distance"`
	Similarity  float64 `json:"similarity"`
	CompletedAt string  `json:"completed_at"`
}

type PreferencesRequest struct {
	EmbeddingModel      string `json:"embedding_model"`
	EmbeddingDimensions int    `json:"embedding_dimensions"`
}
