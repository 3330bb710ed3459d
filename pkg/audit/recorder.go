package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Recorder writes audit records.
type Recorder interface {
	Record(ctx context.Context, tenantID uuid.UUID, action string, opts ...Option) error
}

// RecorderOption configures a Recorder.
type RecorderOption func(*recorder)

// WithActorExtractor sets a function that supplies the actor from context when
// the caller did not set one.
func WithActorExtractor(fn func(context.Context) (string, bool)) RecorderOption {
	return func(r *recorder) {
		r.actorExtractor = fn
	}
}

// WithClock overrides the time source for CreatedAt.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *recorder) {
		if now != nil {
			r.now = now
		}
	}
}

type recorder struct {
	storage        Storage
	actorExtractor func(context.Context) (string, bool)
	now            func() time.Time
}

// NewRecorder creates a recorder backed by storage.
// Panics if storage is nil.
func NewRecorder(storage Storage, opts ...RecorderOption) Recorder {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}

	r := &recorder{storage: storage, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *recorder) Record(ctx context.Context, tenantID uuid.UUID, action string, opts ...Option) error {
	rec := Record{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Action:    action,
		Result:    ResultSuccess,
		CreatedAt: r.now().UTC(),
	}
	for _, opt := range opts {
		opt(&rec)
	}

	if rec.Actor == "" && r.actorExtractor != nil {
		if actor, ok := r.actorExtractor(ctx); ok {
			rec.Actor = actor
		}
	}

	if err := rec.Validate(); err != nil {
		return err
	}
	return r.storage.Store(ctx, rec)
}

// Nop is a Recorder that discards records.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, uuid.UUID, string, ...Option) error { return nil }
