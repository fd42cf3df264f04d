package streams

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Consumer reads envelopes from Redis Streams using consumer groups.
type Consumer struct {
	client *redis.Client
	group  string
	name   string
}

// ConsumerOption configures consumer behaviour on read.
type ConsumerOption func(*redis.XReadGroupArgs)

// WithBlock sets the maximum blocking duration when reading.
func WithBlock(d time.Duration) ConsumerOption {
	return func(args *redis.XReadGroupArgs) {
		if d > 0 {
			args.Block = d
		}
	}
}

// WithCount caps the number of messages returned in a single read.
func WithCount(n int64) ConsumerOption {
	return func(args *redis.XReadGroupArgs) {
		if n > 0 {
			args.Count = n
		}
	}
}

// NewConsumer builds a new consumer for the specified group and name.
func NewConsumer(client *redis.Client, group, name string) *Consumer {
	return &Consumer{client: client, group: group, name: name}
}

// EnsureGroup creates the consumer group if it does not exist.
func EnsureGroup(ctx context.Context, client *redis.Client, stream, group string) error {
	if stream == "" || group == "" {
		return fmt.Errorf("stream and group must be provided")
	}
	if err := client.XGroupCreateMkStream(ctx, stream, group, "$").Err(); err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return fmt.Errorf("xgroup create: %w", err)
	}
	return nil
}

// Message represents a consumed stream entry.
type Message struct {
	ID       string
	Envelope Envelope
}

// Read pulls messages from the provided stream using the configured group/name.
func (c *Consumer) Read(ctx context.Context, stream string, opts ...ConsumerOption) ([]Message, error) {
	if stream == "" {
		return nil, fmt.Errorf("stream name is required")
	}
	if c.group == "" || c.name == "" {
		return nil, fmt.Errorf("consumer group and name must be configured")
	}

	args := &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  []string{stream, ">"},
	}
	for _, opt := range opts {
		opt(args)
	}

	streams, err := c.client.XReadGroup(ctx, args).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	var out []Message
	for _, st := range streams {
		for _, msg := range st.Messages {
			if decoded, ok := c.decodeMessage(ctx, stream, msg); ok {
				out = append(out, decoded)
			}
		}
	}
	return out, nil
}

// Ack acknowledges processing of the provided message IDs.
func (c *Consumer) Ack(ctx context.Context, stream string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.client.XAck(ctx, stream, c.group, ids...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

// AutoClaim reclaims pending messages older than minIdle and assigns them to
// this consumer. The returned next ID continues the claim scan.
func (c *Consumer) AutoClaim(ctx context.Context, stream string, minIdle time.Duration, start string, count int64) ([]Message, string, error) {
	if stream == "" {
		return nil, "", fmt.Errorf("stream name is required")
	}
	if c.group == "" || c.name == "" {
		return nil, "", fmt.Errorf("consumer group and name must be configured")
	}
	args := &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    c.group,
		Consumer: c.name,
		MinIdle:  minIdle,
		Start:    start,
	}
	if count > 0 {
		args.Count = count
	}
	msgs, next, err := c.client.XAutoClaim(ctx, args).Result()
	if err != nil {
		return nil, "", fmt.Errorf("xautoclaim: %w", err)
	}
	var out []Message
	for _, msg := range msgs {
		if decoded, ok := c.decodeMessage(ctx, stream, msg); ok {
			out = append(out, decoded)
		}
	}
	return out, next, nil
}

// decodeMessage unwraps one stream entry. Malformed entries are acked and
// dropped so they cannot wedge the group.
func (c *Consumer) decodeMessage(ctx context.Context, stream string, msg redis.XMessage) (Message, bool) {
	raw, ok := msg.Values["envelope"]
	if !ok {
		_ = c.client.XAck(ctx, stream, c.group, msg.ID).Err()
		return Message{}, false
	}

	var bytesData []byte
	switch v := raw.(type) {
	case string:
		bytesData = []byte(v)
	case []byte:
		bytesData = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			_ = c.client.XAck(ctx, stream, c.group, msg.ID).Err()
			return Message{}, false
		}
		bytesData = data
	}

	env, err := UnmarshalEnvelope(bytesData)
	if err != nil {
		_ = c.client.XAck(ctx, stream, c.group, msg.ID).Err()
		return Message{}, false
	}
	return Message{ID: msg.ID, Envelope: env}, true
}

// GroupLag returns pending and lag counts for the stream/group, for health
// reporting.
func GroupLag(ctx context.Context, client *redis.Client, stream, group string) (pending, lag int64, err error) {
	groups, err := client.XInfoGroups(ctx, stream).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("xinfo groups: %w", err)
	}
	lag = -1
	for _, info := range groups {
		if info.Name != group {
			continue
		}
		pending = info.Pending
		lag = info.Lag
		break
	}
	return pending, lag, nil
}
