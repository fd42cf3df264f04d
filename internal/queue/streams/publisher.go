package streams

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Publisher wraps Redis Stream publishing.
type Publisher struct {
	client *redis.Client
}

// PublishOption allows configuring Redis XADD behaviour.
type PublishOption func(*redis.XAddArgs)

// WithMaxLenApprox sets an approximate max length for the stream.
func WithMaxLenApprox(maxLen int64) PublishOption {
	return func(args *redis.XAddArgs) {
		if maxLen > 0 {
			args.MaxLen = maxLen
			args.Approx = true
		}
	}
}

// NewPublisher creates a Publisher instance.
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish validates the envelope and appends it to the given Redis stream.
func (p *Publisher) Publish(ctx context.Context, stream string, envelope Envelope, opts ...PublishOption) (string, error) {
	if stream == "" {
		return "", fmt.Errorf("stream name is required")
	}
	if envelope.EventID == "" {
		envelope.EventID = uuid.NewString()
	}
	if envelope.OccurredAt.IsZero() {
		envelope.OccurredAt = time.Now().UTC()
	}

	raw, err := envelope.Marshal()
	if err != nil {
		return "", err
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"envelope": raw},
	}
	for _, opt := range opts {
		opt(args)
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}
	return id, nil
}

// PublishRaw wraps an arbitrary payload in an envelope before publishing.
func (p *Publisher) PublishRaw(ctx context.Context, stream, eventType string, payload interface{}, opts ...PublishOption) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	env := Envelope{
		EventType: eventType,
		Data:      data,
	}
	return p.Publish(ctx, stream, env, opts...)
}
