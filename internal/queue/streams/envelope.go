// Package streams is a thin Redis Streams queue used to hand claimed
// executions from the dispatcher to workers. Messages are JSON envelopes in a
// single stream field, consumed through a consumer group with explicit acks.
package streams

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the message wrapper persisted to the stream.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Attempt    int             `json:"attempt"`
	Data       json.RawMessage `json:"data"`
}

// ValidateBasic ensures mandatory envelope fields are present.
func (e *Envelope) ValidateBasic() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if e.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if e.Attempt < 0 {
		return fmt.Errorf("attempt must be >= 0")
	}
	if len(e.Data) == 0 {
		return fmt.Errorf("data payload is required")
	}
	return nil
}

// Marshal returns the JSON encoding of a validated envelope.
func (e *Envelope) Marshal() ([]byte, error) {
	if err := e.ValidateBasic(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// UnmarshalEnvelope parses JSON bytes into an Envelope and validates it.
func UnmarshalEnvelope(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return env, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if err := env.ValidateBasic(); err != nil {
		return env, err
	}
	return env, nil
}
