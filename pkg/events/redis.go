package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/entitlekit/pkg/logger"
)

// DefaultChannelPrefix prefixes per-tenant Redis channels.
const DefaultChannelPrefix = "entitlekit:events:"

// RedisSink publishes events as JSON to one Redis pub/sub channel per tenant.
type RedisSink struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

// RedisOption configures a RedisSink.
type RedisOption func(*RedisSink)

// WithChannelPrefix overrides DefaultChannelPrefix.
func WithChannelPrefix(prefix string) RedisOption {
	return func(s *RedisSink) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRedisLogger sets the logger used for undecodable messages.
func WithRedisLogger(l *slog.Logger) RedisOption {
	return func(s *RedisSink) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewRedisSink creates a Redis-backed sink.
// Panics if client is nil.
func NewRedisSink(client redis.UniversalClient, opts ...RedisOption) *RedisSink {
	if client == nil {
		panic("events: redis client is required")
	}

	s := &RedisSink{
		client: client,
		prefix: DefaultChannelPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Channel returns the channel name for a tenant.
func (s *RedisSink) Channel(tenantID uuid.UUID) string {
	return s.prefix + tenantID.String()
}

// Publish implements Sink.
func (s *RedisSink) Publish(ctx context.Context, name string, payload map[string]any, tenantID uuid.UUID) error {
	data, err := json.Marshal(New(name, maps.Clone(payload), tenantID))
	if err != nil {
		return fmt.Errorf("encode event %s: %w", name, err)
	}

	if err := s.client.Publish(ctx, s.Channel(tenantID), data).Err(); err != nil {
		return fmt.Errorf("publish event %s: %w", name, err)
	}
	return nil
}

// Subscribe streams events for tenantID (or all tenants when tenantID is
// uuid.Nil) until ctx is done. The returned channel is closed afterwards.
func (s *RedisSink) Subscribe(ctx context.Context, tenantID uuid.UUID) (<-chan Event, error) {
	var ps *redis.PubSub
	if tenantID == uuid.Nil {
		ps = s.client.PSubscribe(ctx, s.prefix+"*")
	} else {
		ps = s.client.Subscribe(ctx, s.Channel(tenantID))
	}

	// Wait for the subscription confirmation so no event published after
	// Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe to events: %w", err)
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		defer func() { _ = ps.Close() }()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					s.logger.WarnContext(ctx, "dropping undecodable event",
						slog.String("channel", msg.Channel),
						logger.Error(err))
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
