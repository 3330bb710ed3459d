package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event names published by the engine.
const (
	SubscriptionStateChanged     = "SUBSCRIPTION_STATE_CHANGED"
	SubscriptionPaymentSucceeded = "SUBSCRIPTION_PAYMENT_SUCCEEDED"
	SubscriptionPaymentFailed    = "SUBSCRIPTION_PAYMENT_FAILED"
	SubscriptionExpired          = "SUBSCRIPTION_EXPIRED"
	SubscriptionPlanChanged      = "SUBSCRIPTION_PLAN_CHANGED"
	SubscriptionExpiringSoon     = "SUBSCRIPTION_EXPIRING_SOON"
	SubscriptionConsistencyIssue = "SUBSCRIPTION_CONSISTENCY_ISSUE"
)

// ErrSinkClosed is returned when publishing to a closed sink.
var ErrSinkClosed = errors.New("event sink is closed")

// Event is a published notification.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	TenantID   uuid.UUID      `json:"tenant_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// New builds an event with a fresh ID.
func New(name string, payload map[string]any, tenantID uuid.UUID) Event {
	return Event{
		ID:         uuid.New(),
		Name:       name,
		TenantID:   tenantID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

// Sink receives events from the engine.
type Sink interface {
	Publish(ctx context.Context, name string, payload map[string]any, tenantID uuid.UUID) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, name string, payload map[string]any, tenantID uuid.UUID) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, name string, payload map[string]any, tenantID uuid.UUID) error {
	return f(ctx, name, payload, tenantID)
}

// Discard is a Sink that drops every event.
var Discard Sink = SinkFunc(func(context.Context, string, map[string]any, uuid.UUID) error { return nil })

// Multi publishes to every sink and joins their errors.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, name string, payload map[string]any, tenantID uuid.UUID) error {
		var errs []error
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s.Publish(ctx, name, payload, tenantID); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
