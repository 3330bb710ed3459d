package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlekit/pkg/events"
)

func newRedisSink(t *testing.T) *events.RedisSink {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return events.NewRedisSink(client, events.WithChannelPrefix("test:events:"))
}

func TestRedisSinkTenantChannel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sink := newRedisSink(t)
	tenantID := uuid.New()
	assert.Equal(t, "test:events:"+tenantID.String(), sink.Channel(tenantID))

	ch, err := sink.Subscribe(ctx, tenantID)
	require.NoError(t, err)

	require.NoError(t, sink.Publish(ctx, events.SubscriptionExpiringSoon, map[string]any{"daysLeft": 7}, tenantID))

	select {
	case e := <-ch:
		assert.Equal(t, events.SubscriptionExpiringSoon, e.Name)
		assert.Equal(t, tenantID, e.TenantID)
		assert.EqualValues(t, 7, e.Payload["daysLeft"])
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestRedisSinkAllTenants(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sink := newRedisSink(t)
	ch, err := sink.Subscribe(ctx, uuid.Nil)
	require.NoError(t, err)

	a, b := uuid.New(), uuid.New()
	require.NoError(t, sink.Publish(ctx, "A", nil, a))
	require.NoError(t, sink.Publish(ctx, "B", nil, b))

	got := map[uuid.UUID]string{}
	for len(got) < 2 {
		select {
		case e := <-ch:
			got[e.TenantID] = e.Name
		case <-ctx.Done():
			t.Fatal("timed out waiting for events")
		}
	}
	assert.Equal(t, map[uuid.UUID]string{a: "A", b: "B"}, got)
}

func TestRedisSinkSubscriptionEndsWithContext(t *testing.T) {
	t.Parallel()

	sink := newRedisSink(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := sink.Subscribe(ctx, uuid.New())
	require.NoError(t, err)
	cancel()

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewRedisSinkPanicsOnNilClient(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { events.NewRedisSink(nil) })
}
