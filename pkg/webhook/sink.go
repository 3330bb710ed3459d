package webhook

import (
	"context"
	"log/slog"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlekit/pkg/events"
	"github.com/dmitrymomot/entitlekit/pkg/logger"
	"github.com/dmitrymomot/entitlekit/pkg/metrics"
)

const defaultQueueSize = 512

// Sink queues events and delivers them on a background worker.
type Sink struct {
	sender  *Sender
	queue   chan events.Event
	logger  *slog.Logger
	metrics *metrics.Metrics

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithLogger sets the logger for failed deliveries.
func WithLogger(l *slog.Logger) SinkOption {
	return func(s *Sink) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics counts deliveries by outcome.
func WithMetrics(m *metrics.Metrics) SinkOption {
	return func(s *Sink) {
		s.metrics = m
	}
}

// WithQueueSize sets how many events may wait for delivery.
func WithQueueSize(n int) SinkOption {
	return func(s *Sink) {
		if n > 0 {
			s.queue = make(chan events.Event, n)
		}
	}
}

// NewSink starts the delivery worker. Call Close on shutdown.
// Panics if sender is nil.
func NewSink(sender *Sender, opts ...SinkOption) *Sink {
	if sender == nil {
		panic("webhook: sender is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Sink{
		sender:  sender,
		queue:   make(chan events.Event, defaultQueueSize),
		logger:  slog.Default(),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("webhook"))

	go s.run()
	return s
}

// Publish enqueues the event. It never waits for delivery and returns
// ErrQueueFull when the queue has no room.
func (s *Sink) Publish(ctx context.Context, name string, payload map[string]any, tenantID uuid.UUID) error {
	select {
	case <-s.done:
		return events.ErrSinkClosed
	default:
	}

	select {
	case s.queue <- events.New(name, maps.Clone(payload), tenantID):
		return nil
	default:
		s.metrics.WebhookDelivery("dropped")
		s.logger.WarnContext(ctx, "webhook queue is full, event dropped",
			logger.Event(name), logger.TenantID(tenantID))
		return ErrQueueFull
	}
}

func (s *Sink) run() {
	defer close(s.stopped)
	for {
		select {
		case e := <-s.queue:
			s.deliver(e)
		case <-s.done:
			for {
				select {
				case e := <-s.queue:
					s.deliver(e)
				default:
					return
				}
			}
		}
	}
}

func (s *Sink) deliver(e events.Event) {
	if err := s.sender.Deliver(s.ctx, e); err != nil {
		s.metrics.WebhookDelivery("failed")
		s.logger.Error("failed to deliver event webhook",
			logger.Event(e.Name), logger.TenantID(e.TenantID), logger.Error(err))
		return
	}
	s.metrics.WebhookDelivery("ok")
}

// Close stops accepting events and waits for queued ones to be delivered.
// When ctx expires first, in-flight deliveries are cancelled and ctx.Err()
// is returned.
func (s *Sink) Close(ctx context.Context) error {
	s.once.Do(func() { close(s.done) })
	defer s.cancel()

	select {
	case <-s.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
