package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlekit/pkg/audit"
	"github.com/dmitrymomot/entitlekit/pkg/events"
	"github.com/dmitrymomot/entitlekit/pkg/logger"
	"github.com/dmitrymomot/entitlekit/pkg/metrics"
	"github.com/dmitrymomot/entitlekit/pkg/subscription"
	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

// Decision reasons.
const (
	ReasonAlreadyDeactivated     = "already-deactivated"
	ReasonNotExpired             = "not-expired"
	ReasonFallbackEditionMissing = "fallback-edition-missing"
	ReasonFallbackToFree         = "fallback-to-free"
	ReasonWithinGrace            = "within-grace"
	ReasonGraceElapsed           = "grace-elapsed"
	ReasonMaxPastDueElapsed      = "max-past-due-elapsed"
	ReasonPastDueWindowElapsed   = "past-due-window-elapsed"
)

// Audit actions written by ApplyDecision.
const (
	AuditDecisionApplied = "policy.decision_applied"
	AuditDecisionFailed  = "policy.decision_failed"
)

// Decision is the outcome of evaluating a tenant's policy at a point in time.
type Decision struct {
	TenantID    uuid.UUID                `json:"tenant_id"`
	EvaluatedAt time.Time                `json:"evaluated_at"`
	State       tenant.SubscriptionState `json:"state"`
	EditionID   string                   `json:"edition_id,omitempty"`
	Policy      Policy                   `json:"policy"`

	IsExpired bool `json:"is_expired"`
	IsPastDue bool `json:"is_past_due"`
	IsInGrace bool `json:"is_in_grace"`

	PastDueSince          *time.Time `json:"past_due_since,omitempty"`
	ExpiresAt             *time.Time `json:"expires_at,omitempty"`
	PastDueWindowDeadline *time.Time `json:"past_due_window_deadline,omitempty"`
	GraceDeadline         *time.Time `json:"grace_deadline,omitempty"`
	MaxPastDueDeadline    *time.Time `json:"max_past_due_deadline,omitempty"`

	GraceElapsed         bool `json:"grace_elapsed"`
	PastDueWindowElapsed bool `json:"past_due_window_elapsed"`
	MaxPastDueElapsed    bool `json:"max_past_due_elapsed"`

	ActionToApply Action `json:"action_to_apply"`
	Reason        string `json:"reason"`
}

// Engine evaluates and applies expiration policies.
type Engine interface {
	ResolvePolicy(ctx context.Context, tenantID uuid.UUID) (Policy, error)
	// Evaluate re-runs the lifecycle evaluation at now and decides.
	// A zero now means the engine clock.
	Evaluate(ctx context.Context, tenantID uuid.UUID, now time.Time) (*Decision, error)
	// ApplyDecision carries out d and reports whether anything changed.
	ApplyDecision(ctx context.Context, d *Decision, actor string) (bool, error)
}

// Option configures the engine.
type Option func(*engine)

// WithGlobalConfig sets the process-wide policy settings.
func WithGlobalConfig(cfg GlobalConfig) Option {
	return func(e *engine) {
		e.global = cfg
	}
}

// WithEventSink sets the sink for SUBSCRIPTION_EXPIRED and SUBSCRIPTION_PLAN_CHANGED.
func WithEventSink(sink events.Sink) Option {
	return func(e *engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithAuditRecorder sets the audit recorder.
func WithAuditRecorder(r audit.Recorder) Option {
	return func(e *engine) {
		if r != nil {
			e.audit = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithMetrics counts decisions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *engine) {
		e.metrics = m
	}
}

type engine struct {
	tenants   tenant.Repository
	lifecycle subscription.Service
	global    GlobalConfig
	sink      events.Sink
	audit     audit.Recorder
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewEngine creates a policy engine.
// Panics if tenants or lifecycle is nil.
func NewEngine(tenants tenant.Repository, lifecycle subscription.Service, opts ...Option) Engine {
	if tenants == nil {
		panic("policy: tenant repository is required")
	}
	if lifecycle == nil {
		panic("policy: subscription service is required")
	}

	e := &engine{
		tenants:   tenants,
		lifecycle: lifecycle,
		sink:      events.Discard,
		audit:     audit.Nop{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(logger.Component("policy"))

	return e
}

func (e *engine) ResolvePolicy(ctx context.Context, tenantID uuid.UUID) (Policy, error) {
	t, err := e.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return Policy{}, fmt.Errorf("load tenant %s: %w", tenantID, err)
	}
	return Merge(t.ExpirationPolicy, e.global), nil
}

func (e *engine) Evaluate(ctx context.Context, tenantID uuid.UUID, now time.Time) (*Decision, error) {
	if now.IsZero() {
		now = e.now()
	}
	now = now.UTC()

	t, err := e.lifecycle.EvaluateTenantSubscriptionState(ctx, tenantID, now)
	if err != nil {
		return nil, err
	}

	d := Decide(t, Merge(t.ExpirationPolicy, e.global), now)
	e.metrics.PolicyDecision(string(d.ActionToApply))
	return d, nil
}

// Decide computes the decision for t under p at now. It does not evaluate
// time-driven transitions first; Engine.Evaluate does.
func Decide(t *tenant.Tenant, p Policy, now time.Time) *Decision {
	d := &Decision{
		TenantID:    t.ID,
		EvaluatedAt: now,
		State:       t.SubscriptionState,
		EditionID:   t.EditionID,
		Policy:      p,
		IsPastDue:   t.SubscriptionState == tenant.StatePastDue,
		IsInGrace:   t.SubscriptionState == tenant.StateGrace,
	}

	d.ExpiresAt = ExpiresAt(t)
	if d.ExpiresAt != nil {
		d.IsExpired = d.ExpiresAt.Before(now)
		d.PastDueWindowDeadline = addDays(*d.ExpiresAt, p.PastDueWindowDays)
	}

	// Zero grace days means no grace period follows the past-due window.
	switch {
	case t.GracePeriodEndDate != nil:
		d.GraceDeadline = copyTime(*t.GracePeriodEndDate)
	case d.PastDueWindowDeadline != nil && p.GraceDays > 0:
		d.GraceDeadline = addDays(*d.PastDueWindowDeadline, p.GraceDays)
	}

	switch {
	case t.PastDueSince != nil:
		d.PastDueSince = copyTime(*t.PastDueSince)
		d.MaxPastDueDeadline = addDays(*t.PastDueSince, p.MaxPastDueDays)
	case d.ExpiresAt != nil:
		d.MaxPastDueDeadline = addDays(*d.ExpiresAt, p.MaxPastDueDays)
	}

	d.GraceElapsed = elapsed(d.GraceDeadline, now)
	d.PastDueWindowElapsed = elapsed(d.PastDueWindowDeadline, now)
	d.MaxPastDueElapsed = elapsed(d.MaxPastDueDeadline, now)

	d.ActionToApply, d.Reason = decide(d)
	return d
}

func decide(d *Decision) (Action, string) {
	switch d.State {
	case tenant.StateDeactivated:
		return ActionNone, ReasonAlreadyDeactivated
	case tenant.StateActive, tenant.StateTrialing:
		if !d.IsExpired {
			return ActionNone, ReasonNotExpired
		}
	case tenant.StateSuspended:
		// Suspended by a host action, not by non-payment.
		if !d.IsExpired && d.PastDueSince == nil {
			return ActionNone, ReasonNotExpired
		}
	}

	switch d.Policy.Action {
	case ActionFallbackToFree:
		if d.Policy.FallbackEditionID == "" {
			return ActionNone, ReasonFallbackEditionMissing
		}
		return ActionFallbackToFree, ReasonFallbackToFree

	case ActionDeactivate:
		switch {
		case d.GraceElapsed:
			return ActionDeactivate, ReasonGraceElapsed
		case d.PastDueWindowElapsed:
			return ActionDeactivate, ReasonPastDueWindowElapsed
		case d.MaxPastDueElapsed:
			return ActionDeactivate, ReasonMaxPastDueElapsed
		}

	default:
		switch {
		case d.GraceElapsed:
			return ActionSuspend, ReasonGraceElapsed
		case d.MaxPastDueElapsed:
			return ActionSuspend, ReasonMaxPastDueElapsed
		case d.GraceDeadline == nil && d.PastDueWindowElapsed:
			return ActionSuspend, ReasonPastDueWindowElapsed
		}
	}

	return ActionNone, ReasonWithinGrace
}

// ExpiresAt is the end of the paid term, or of the trial when no term is set.
func ExpiresAt(t *tenant.Tenant) *time.Time {
	if t.SubscriptionEndDate != nil {
		return copyTime(*t.SubscriptionEndDate)
	}
	if end := t.TrialEnd(); end != nil {
		return copyTime(*end)
	}
	return nil
}

func addDays(t time.Time, days int) *time.Time {
	return copyTime(t.AddDate(0, 0, days))
}

func copyTime(t time.Time) *time.Time {
	return &t
}

func elapsed(deadline *time.Time, now time.Time) bool {
	return deadline != nil && !now.Before(*deadline)
}

func (e *engine) ApplyDecision(ctx context.Context, d *Decision, actor string) (bool, error) {
	if d == nil || d.ActionToApply == ActionNone {
		return false, nil
	}
	if actor == "" {
		actor = subscription.DefaultActor
	}

	log := e.logger.With(
		logger.TenantID(d.TenantID),
		logger.Action(string(d.ActionToApply)),
		slog.String("reason", d.Reason),
	)

	before, err := e.tenants.FindByID(ctx, d.TenantID)
	if err != nil {
		return false, fmt.Errorf("load tenant %s: %w", d.TenantID, err)
	}

	changed, err := e.mutate(ctx, before, d, actor, log)
	if err != nil {
		log.ErrorContext(ctx, "failed to apply policy decision", logger.Error(err))
		if auditErr := e.audit.Record(ctx, d.TenantID, AuditDecisionFailed,
			audit.WithActor(actor),
			audit.WithError(err),
			audit.WithMetadataMap(decisionMetadata(d)),
		); auditErr != nil {
			log.ErrorContext(ctx, "failed to record audit entry", logger.Error(auditErr))
		}
		return false, err
	}
	if !changed {
		log.DebugContext(ctx, "policy decision already applied")
		return false, nil
	}

	after, err := e.tenants.FindByID(ctx, d.TenantID)
	if err != nil {
		return true, fmt.Errorf("reload tenant %s: %w", d.TenantID, err)
	}

	name := events.SubscriptionExpired
	payload := map[string]any{
		"action": string(d.ActionToApply),
		"reason": d.Reason,
		"state":  string(after.SubscriptionState),
	}
	if d.ActionToApply == ActionFallbackToFree {
		name = events.SubscriptionPlanChanged
		payload["previous_edition_id"] = before.EditionID
		payload["edition_id"] = after.EditionID
	}
	if err := e.sink.Publish(ctx, name, payload, d.TenantID); err != nil {
		log.ErrorContext(ctx, "failed to publish event", logger.Event(name), logger.Error(err))
	}

	if err := e.audit.Record(ctx, d.TenantID, AuditDecisionApplied,
		audit.WithActor(actor),
		audit.WithSnapshots(subscription.SnapshotOf(before), subscription.SnapshotOf(after)),
		audit.WithStateVersion(after.StateVersion),
		audit.WithMetadataMap(decisionMetadata(d)),
	); err != nil {
		log.ErrorContext(ctx, "failed to record audit entry", logger.Error(err))
	}

	log.InfoContext(ctx, "policy decision applied", logger.State(after.SubscriptionState))
	return true, nil
}

// mutate performs the state change and reports whether anything was written.
func (e *engine) mutate(ctx context.Context, t *tenant.Tenant, d *Decision, actor string, log *slog.Logger) (bool, error) {
	reason := "subscription expired: " + d.Reason

	switch d.ActionToApply {
	case ActionFallbackToFree:
		editionID := d.Policy.FallbackEditionID
		changed := false

		if t.EditionID != editionID || t.SubscriptionEndDate != nil {
			if _, err := e.lifecycle.AssignFallbackEdition(ctx, t.ID, editionID, actor); err != nil {
				return false, err
			}
			changed = true
		}

		if t.SubscriptionState != tenant.StateActive {
			_, err := e.lifecycle.HostReactivateTenant(ctx, t.ID, subscription.HostAction{Reason: reason, Actor: actor})
			switch {
			case errors.Is(err, subscription.ErrReactivationNotAllowed):
				log.WarnContext(ctx, "fallback edition assigned but reactivation not allowed", logger.Error(err))
			case err != nil:
				return changed, err
			default:
				changed = true
			}
		}
		return changed, nil

	case ActionSuspend:
		if t.SubscriptionState == tenant.StateSuspended {
			return false, nil
		}
		_, err := e.lifecycle.HostSuspendTenant(ctx, t.ID, subscription.HostAction{Reason: reason, Actor: actor})
		return err == nil, err

	case ActionDeactivate:
		if t.SubscriptionState == tenant.StateDeactivated {
			return false, nil
		}
		_, err := e.lifecycle.HostDeactivateTenant(ctx, t.ID, subscription.HostAction{Reason: reason, Actor: actor})
		return err == nil, err
	}

	return false, fmt.Errorf("unknown policy action %q", d.ActionToApply)
}

func decisionMetadata(d *Decision) map[string]any {
	return map[string]any{
		"action":       string(d.ActionToApply),
		"reason":       d.Reason,
		"state":        string(d.State),
		"evaluated_at": d.EvaluatedAt,
	}
}
