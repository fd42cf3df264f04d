package streams

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Stream and event names for the execution trigger queue.
const (
	TriggerStream    = "scout:executions"
	TriggerGroup     = "scout-workers"
	EventExecTrigger = "execution.triggered"
)

// ExecutionTriggered tells a worker which claimed execution to run.
type ExecutionTriggered struct {
	ExecutionID string `json:"execution_id"`
	ScoutID     string `json:"scout_id"`
}

// TriggerPublisher publishes execution triggers for the dispatcher's queue
// dispatch mode.
type TriggerPublisher struct {
	Pub *Publisher
}

func NewTriggerPublisher(client *redis.Client) *TriggerPublisher {
	return &TriggerPublisher{Pub: NewPublisher(client)}
}

func (t *TriggerPublisher) Publish(ctx context.Context, executionID, scoutID string) error {
	_, err := t.Pub.PublishRaw(ctx, TriggerStream, EventExecTrigger, ExecutionTriggered{
		ExecutionID: executionID,
		ScoutID:     scoutID,
	}, WithMaxLenApprox(100000))
	if err != nil {
		return fmt.Errorf("publish execution trigger: %w", err)
	}
	return nil
}

// DecodeTrigger extracts the trigger payload from a consumed envelope.
func DecodeTrigger(env Envelope) (ExecutionTriggered, error) {
	if env.EventType != EventExecTrigger {
		return ExecutionTriggered{}, fmt.Errorf("unexpected event type %q", env.EventType)
	}
	var trig ExecutionTriggered
	if err := json.Unmarshal(env.Data, &trig); err != nil {
		return ExecutionTriggered{}, fmt.Errorf("decode trigger: %w", err)
	}
	if trig.ExecutionID == "" {
		return ExecutionTriggered{}, fmt.Errorf("trigger missing execution_id")
	}
	return trig, nil
}
