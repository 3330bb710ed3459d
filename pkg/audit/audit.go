package audit

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// Result is the outcome of an audited action.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// Record is a single immutable audit entry.
type Record struct {
	ID           uuid.UUID      `json:"id" bson:"_id"`
	TenantID     uuid.UUID      `json:"tenant_id" bson:"tenant_id"`
	Action       string         `json:"action" bson:"action"`
	Actor        string         `json:"actor,omitempty" bson:"actor,omitempty"`
	Result       Result         `json:"result" bson:"result"`
	Error        string         `json:"error,omitempty" bson:"error,omitempty"`
	Before       any            `json:"before,omitempty" bson:"before,omitempty"`
	After        any            `json:"after,omitempty" bson:"after,omitempty"`
	StateVersion int64          `json:"state_version" bson:"state_version"`
	Metadata     map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at" bson:"created_at"`
}

// Validate checks required fields.
func (r *Record) Validate() error {
	if r.Action == "" {
		return fmt.Errorf("%w: action is required", ErrRecordValidation)
	}
	if r.TenantID == uuid.Nil {
		return fmt.Errorf("%w: tenant id is required", ErrRecordValidation)
	}
	return nil
}

// Criteria filters records. Zero values are ignored.
type Criteria struct {
	TenantID uuid.UUID
	Action   string
	Since    time.Time
	Until    time.Time
	Limit    int
	Offset   int
}

// Matches reports whether r satisfies c, ignoring Limit and Offset.
func (c Criteria) Matches(r Record) bool {
	if c.TenantID != uuid.Nil && r.TenantID != c.TenantID {
		return false
	}
	if c.Action != "" && r.Action != c.Action {
		return false
	}
	if !c.Since.IsZero() && r.CreatedAt.Before(c.Since) {
		return false
	}
	if !c.Until.IsZero() && !r.CreatedAt.Before(c.Until) {
		return false
	}
	return true
}

// Storage persists and queries audit records.
type Storage interface {
	Store(ctx context.Context, r Record) error
	Query(ctx context.Context, c Criteria) ([]Record, error)
}

// BatchStorage is implemented by storages that can insert several records at once.
type BatchStorage interface {
	Storage
	StoreBatch(ctx context.Context, records []Record) error
}

// Option configures an audit record during Recorder.Record.
type Option func(*Record)

// WithActor sets who triggered the change ("system", "host", "billing", ...).
func WithActor(actor string) Option {
	return func(r *Record) {
		r.Actor = actor
	}
}

// WithSnapshots sets the before and after snapshots.
func WithSnapshots(before, after any) Option {
	return func(r *Record) {
		r.Before = before
		r.After = after
	}
}

// WithStateVersion sets the state version the record refers to.
func WithStateVersion(v int64) Option {
	return func(r *Record) {
		r.StateVersion = v
	}
}

// WithMetadata adds a metadata entry.
func WithMetadata(key string, value any) Option {
	return func(r *Record) {
		if r.Metadata == nil {
			r.Metadata = make(map[string]any)
		}
		r.Metadata[key] = value
	}
}

// WithMetadataMap merges m into the record metadata.
func WithMetadataMap(m map[string]any) Option {
	return func(r *Record) {
		if len(m) == 0 {
			return
		}
		if r.Metadata == nil {
			r.Metadata = make(map[string]any, len(m))
		}
		maps.Copy(r.Metadata, m)
	}
}

// WithError marks the record as a failure carrying err.
func WithError(err error) Option {
	return func(r *Record) {
		if err != nil {
			r.Result = ResultFailure
			r.Error = err.Error()
		}
	}
}
