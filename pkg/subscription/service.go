package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlekit/pkg/audit"
	"github.com/dmitrymomot/entitlekit/pkg/edition"
	"github.com/dmitrymomot/entitlekit/pkg/events"
	"github.com/dmitrymomot/entitlekit/pkg/logger"
	"github.com/dmitrymomot/entitlekit/pkg/metrics"
	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

// MaxReasonLength bounds suspension and deactivation reasons.
const MaxReasonLength = 500

// Service is the subscription lifecycle state machine.
type Service interface {
	InitializeTenantSubscription(ctx context.Context, tenantID uuid.UUID, params InitParams) (*tenant.Tenant, error)

	OnPaymentSuccess(ctx context.Context, tenantID uuid.UUID, p PaymentSuccess) (*tenant.Tenant, error)
	OnPaymentFailure(ctx context.Context, tenantID uuid.UUID, p PaymentFailure) (*tenant.Tenant, error)

	// EvaluateTenantSubscriptionState applies time-driven transitions.
	// A zero now means the service clock. Repeated calls are idempotent.
	EvaluateTenantSubscriptionState(ctx context.Context, tenantID uuid.UUID, now time.Time) (*tenant.Tenant, error)

	HostSuspendTenant(ctx context.Context, tenantID uuid.UUID, action HostAction) (*tenant.Tenant, error)
	HostDeactivateTenant(ctx context.Context, tenantID uuid.UUID, action HostAction) (*tenant.Tenant, error)
	HostReactivateTenant(ctx context.Context, tenantID uuid.UUID, action HostAction) (*tenant.Tenant, error)

	ChangeTenantEdition(ctx context.Context, tenantID uuid.UUID, change EditionChange) (*tenant.Tenant, error)
	// AssignFallbackEdition moves the tenant to editionID and clears its
	// subscription end date.
	AssignFallbackEdition(ctx context.Context, tenantID uuid.UUID, editionID, actor string) (*tenant.Tenant, error)

	GetTenantSubscriptionSnapshot(ctx context.Context, tenantID uuid.UUID) (*Snapshot, error)
	IsTenantActiveForAccess(ctx context.Context, tenantID uuid.UUID, opts AccessOptions) (bool, error)
}

// EditionLookup finds editions. edition.Manager implements it.
type EditionLookup interface {
	Get(ctx context.Context, id string) (*edition.Edition, error)
}

// Entitlements is the part of the feature resolver the service needs.
// entitlement.Resolver implements it.
type Entitlements interface {
	Int(ctx context.Context, tenantID uuid.UUID, key string) (int64, error)
	InvalidateTenant(ctx context.Context, tenantID uuid.UUID)
}

// Option configures the service.
type Option func(*service)

// WithEventSink sets the sink for lifecycle events.
func WithEventSink(sink events.Sink) Option {
	return func(s *service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithAuditRecorder sets the audit recorder.
func WithAuditRecorder(r audit.Recorder) Option {
	return func(s *service) {
		if r != nil {
			s.audit = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics counts committed transitions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *service) {
		s.metrics = m
	}
}

type service struct {
	tenants      tenant.Repository
	editions     EditionLookup
	entitlements Entitlements
	sink         events.Sink
	audit        audit.Recorder
	logger       *slog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

// NewService creates the lifecycle service.
// Panics if tenants, editions or entitlements is nil.
func NewService(tenants tenant.Repository, editions EditionLookup, entitlements Entitlements, opts ...Option) Service {
	if tenants == nil {
		panic("subscription: tenant repository is required")
	}
	if editions == nil {
		panic("subscription: edition lookup is required")
	}
	if entitlements == nil {
		panic("subscription: entitlements are required")
	}

	s := &service{
		tenants:      tenants,
		editions:     editions,
		entitlements: entitlements,
		sink:         events.Discard,
		audit:        audit.Nop{},
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("subscription"))

	return s
}

func (s *service) load(ctx context.Context, tenantID uuid.UUID) (*tenant.Tenant, error) {
	t, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load tenant %s: %w", tenantID, err)
	}
	return t, nil
}

// change is a single commit against a tenant.
type change struct {
	action   string
	actor    string
	to       tenant.SubscriptionState // empty keeps the current state
	patch    tenant.Patch
	metadata map[string]any
}

// commit validates the transition, persists the patch, audits it and
// publishes SUBSCRIPTION_STATE_CHANGED when the state moved. Nothing is
// written when neither the state nor any field changes.
func (s *service) commit(ctx context.Context, t *tenant.Tenant, c change) (*tenant.Tenant, error) {
	from := t.SubscriptionState
	to := c.to
	if to == "" {
		to = from
	}

	stateChanged := from != to
	if stateChanged {
		// A tenant without a state has never been initialised.
		if from != "" {
			if err := ValidateTransition(from, to); err != nil {
				return nil, err
			}
		}
		c.patch.SubscriptionState = tenant.Set(to)
	}
	if c.patch.IsEmpty() {
		return t, nil
	}
	c.patch.StateVersion = tenant.Set(t.StateVersion + 1)

	if err := s.tenants.Update(ctx, t.ID, c.patch); err != nil {
		return nil, fmt.Errorf("update tenant %s: %w", t.ID, err)
	}

	after := t.Clone()
	c.patch.Apply(after)

	log := s.logger.With(logger.TenantID(t.ID), logger.Action(c.action))

	if err := s.audit.Record(ctx, t.ID, c.action,
		audit.WithActor(c.actor),
		audit.WithSnapshots(SnapshotOf(t), SnapshotOf(after)),
		audit.WithStateVersion(after.StateVersion),
		audit.WithMetadataMap(c.metadata),
	); err != nil {
		log.ErrorContext(ctx, "failed to record audit entry", logger.Error(err))
	}

	if !stateChanged {
		log.DebugContext(ctx, "subscription fields updated")
		return after, nil
	}

	s.metrics.Transition(string(from), string(to))
	log.InfoContext(ctx, "subscription state changed", logger.Transition(string(from), string(to)))

	s.publish(ctx, events.SubscriptionStateChanged, t.ID, map[string]any{
		"previous_state": string(from),
		"next_state":     string(to),
		"state_version":  after.StateVersion,
		"action":         c.action,
		"metadata":       c.metadata,
	})

	return after, nil
}

// publish is fire-and-forget: failures are logged.
func (s *service) publish(ctx context.Context, name string, tenantID uuid.UUID, payload map[string]any) {
	if err := s.sink.Publish(ctx, name, payload, tenantID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event",
			logger.Event(name), logger.TenantID(tenantID), logger.Error(err))
	}
}

// clearIfSet resets the timestamp when cur holds a value.
func clearIfSet(f *tenant.Field[*time.Time], cur *time.Time) {
	if cur != nil {
		*f = tenant.ClearTime()
	}
}

// ensure sets f to v when it differs from cur.
func ensure[T comparable](f *tenant.Field[T], cur, v T) {
	if cur != v {
		*f = tenant.Set(v)
	}
}
