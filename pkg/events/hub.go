package events

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"
)

// Subscription receives events from a Hub.
type Subscription interface {
	// C is closed when the subscription ends.
	C() <-chan Event
	Close() error
}

type subscriber struct {
	tenantID uuid.UUID // uuid.Nil receives all tenants
	ch       chan Event
	stop     func() bool
	closed   bool
	mu       sync.RWMutex
}

func (s *subscriber) C() <-chan Event { return s.ch }

func (s *subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.ch)
		s.closed = true
	}
	return nil
}

func (s *subscriber) send(e Event) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}
	select {
	case s.ch <- e:
		return true
	default:
		return false
	}
}

// Hub is an in-process Sink with tenant-scoped subscribers.
// Events are delivered without blocking; a subscriber whose buffer is full is
// removed and its channel closed.
type Hub struct {
	subscribers map[*subscriber]struct{}
	bufferSize  int
	closed      bool
	mu          sync.RWMutex
}

// NewHub creates a hub. bufferSize is the per-subscriber channel size (min 1).
func NewHub(bufferSize int) *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]struct{}),
		bufferSize:  max(bufferSize, 1),
	}
}

// Subscribe receives events of one tenant until ctx is done or Close is called.
func (h *Hub) Subscribe(ctx context.Context, tenantID uuid.UUID) Subscription {
	return h.subscribe(ctx, tenantID)
}

// SubscribeAll receives events of every tenant.
func (h *Hub) SubscribeAll(ctx context.Context) Subscription {
	return h.subscribe(ctx, uuid.Nil)
}

func (h *Hub) subscribe(ctx context.Context, tenantID uuid.UUID) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &subscriber{tenantID: tenantID, ch: make(chan Event, h.bufferSize)}
	if h.closed {
		_ = sub.Close()
		return sub
	}
	h.subscribers[sub] = struct{}{}

	sub.stop = context.AfterFunc(ctx, func() { h.unsubscribe(sub) })

	return sub
}

// Publish implements Sink.
func (h *Hub) Publish(_ context.Context, name string, payload map[string]any, tenantID uuid.UUID) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrSinkClosed
	}

	e := New(name, maps.Clone(payload), tenantID)
	for sub := range h.subscribers {
		if sub.tenantID != uuid.Nil && sub.tenantID != tenantID {
			continue
		}
		if !sub.send(e) {
			go h.unsubscribe(sub)
		}
	}
	return nil
}

// Close closes every subscription. Safe to call more than once.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for sub := range h.subscribers {
		sub.stop()
		_ = sub.Close()
	}
	clear(h.subscribers)
	h.mu.Unlock()

	return nil
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subscribers, sub)
	if sub.stop != nil {
		sub.stop()
	}
	_ = sub.Close()
}
