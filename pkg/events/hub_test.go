package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlekit/pkg/events"
)

func receive(t *testing.T, sub events.Subscription) events.Event {
	t.Helper()

	select {
	case e, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return events.Event{}
	}
}

func TestHubTenantScoping(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	hub := events.NewHub(4)
	t.Cleanup(func() { _ = hub.Close() })

	a, b := uuid.New(), uuid.New()
	subA := hub.Subscribe(ctx, a)
	subAll := hub.SubscribeAll(ctx)

	require.NoError(t, hub.Publish(ctx, events.SubscriptionExpired, map[string]any{"reason": "grace-elapsed"}, b))
	require.NoError(t, hub.Publish(ctx, events.SubscriptionPlanChanged, nil, a))

	got := receive(t, subA)
	assert.Equal(t, events.SubscriptionPlanChanged, got.Name)
	assert.Equal(t, a, got.TenantID)
	assert.NotEqual(t, uuid.Nil, got.ID)

	first := receive(t, subAll)
	second := receive(t, subAll)
	assert.Equal(t, events.SubscriptionExpired, first.Name)
	assert.Equal(t, "grace-elapsed", first.Payload["reason"])
	assert.Equal(t, events.SubscriptionPlanChanged, second.Name)
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	hub := events.NewHub(1)
	t.Cleanup(func() { _ = hub.Close() })

	id := uuid.New()
	sub := hub.Subscribe(ctx, id)

	require.NoError(t, hub.Publish(ctx, "E1", nil, id))
	require.NoError(t, hub.Publish(ctx, "E2", nil, id))

	assert.Equal(t, "E1", receive(t, sub).Name)
	assert.Eventually(t, func() bool {
		_, ok := <-sub.C()
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestHubContextCancellation(t *testing.T) {
	t.Parallel()

	hub := events.NewHub(1)
	t.Cleanup(func() { _ = hub.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	sub := hub.SubscribeAll(ctx)
	cancel()

	assert.Eventually(t, func() bool {
		_, ok := <-sub.C()
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestHubClose(t *testing.T) {
	t.Parallel()

	hub := events.NewHub(1)
	sub := hub.SubscribeAll(context.Background())

	require.NoError(t, hub.Close())
	require.NoError(t, hub.Close())

	_, ok := <-sub.C()
	assert.False(t, ok)

	err := hub.Publish(context.Background(), "E", nil, uuid.New())
	assert.ErrorIs(t, err, events.ErrSinkClosed)

	late := hub.SubscribeAll(context.Background())
	_, ok = <-late.C()
	assert.False(t, ok)
}

func TestHubPayloadIsCopied(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	hub := events.NewHub(1)
	t.Cleanup(func() { _ = hub.Close() })

	sub := hub.SubscribeAll(ctx)
	payload := map[string]any{"k": "v"}
	require.NoError(t, hub.Publish(ctx, "E", payload, uuid.New()))
	payload["k"] = "changed"

	assert.Equal(t, "v", receive(t, sub).Payload["k"])
}

func TestMulti(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mem := events.NewMemorySink()
	boom := errors.New("boom")
	failing := events.SinkFunc(func(context.Context, string, map[string]any, uuid.UUID) error { return boom })

	err := events.Multi(mem, nil, failing).Publish(ctx, "E", nil, uuid.New())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, mem.Len())

	require.NoError(t, events.Discard.Publish(ctx, "E", nil, uuid.New()))
}

func TestMemorySink(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mem := events.NewMemorySink()
	id := uuid.New()

	require.NoError(t, mem.Publish(ctx, "A", nil, id))
	require.NoError(t, mem.Publish(ctx, "B", nil, id))
	require.NoError(t, mem.Publish(ctx, "A", nil, id))

	assert.Len(t, mem.Named("A"), 2)
	assert.Len(t, mem.Events(), 3)

	mem.Reset()
	assert.Zero(t, mem.Len())
}
