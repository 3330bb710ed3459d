package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlekit/pkg/events"
	"github.com/dmitrymomot/entitlekit/pkg/feature"
	"github.com/dmitrymomot/entitlekit/pkg/logger"
	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

// Audit actions written by the service.
const (
	ActionInitialized      = "subscription.initialized"
	ActionPaymentSucceeded = "subscription.payment_succeeded"
	ActionPaymentFailed    = "subscription.payment_failed"
	ActionEvaluated        = "subscription.evaluated"
	ActionHostSuspended    = "subscription.host_suspended"
	ActionHostDeactivated  = "subscription.host_deactivated"
	ActionHostReactivated  = "subscription.host_reactivated"
	ActionEditionChanged   = "subscription.edition_changed"
	ActionFallbackAssigned = "subscription.fallback_edition_assigned"
)

// DefaultActor is recorded when a caller does not name one.
const DefaultActor = "system"

// Mode selects the initial state of a new subscription.
type Mode string

const (
	ModeTrial  Mode = "trial"
	ModeActive Mode = "active"
)

// InitParams configures InitializeTenantSubscription.
type InitParams struct {
	Mode                Mode
	TrialEndDate        *time.Time
	SubscriptionEndDate *time.Time
	EditionID           string
	Actor               string
}

// PaymentSuccess describes a settled invoice.
type PaymentSuccess struct {
	PaidThroughDate time.Time
	InvoiceID       string
	Actor           string
}

// PaymentFailure describes a failed charge. A zero FailedAt means now.
type PaymentFailure struct {
	FailedAt   time.Time
	InvoiceID  string
	ReasonCode string
	Actor      string
}

func actorOr(actor string) string {
	if actor == "" {
		return DefaultActor
	}
	return actor
}

func (s *service) InitializeTenantSubscription(ctx context.Context, tenantID uuid.UUID, p InitParams) (*tenant.Tenant, error) {
	now := s.now().UTC()

	var to tenant.SubscriptionState
	switch p.Mode {
	case ModeTrial:
		if p.TrialEndDate != nil && !p.TrialEndDate.After(now) {
			return nil, ErrInvalidTrialEndDate
		}
		to = tenant.StateTrialing
	case ModeActive:
		to = tenant.StateActive
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, p.Mode)
	}
	if p.SubscriptionEndDate != nil && !p.SubscriptionEndDate.After(now) {
		return nil, ErrInvalidSubscriptionEndDate
	}

	t, err := s.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if p.EditionID != "" {
		if _, err := s.editions.Get(ctx, p.EditionID); err != nil {
			return nil, err
		}
	}

	patch := tenant.Patch{
		SubscriptionStartDate: tenant.SetTime(now),
		SubscriptionEndDate:   tenant.Field[*time.Time]{Value: p.SubscriptionEndDate, Set: true},
		TrialEndDate:          tenant.Field[*time.Time]{Value: p.TrialEndDate, Set: true},
		PastDueSince:          tenant.ClearTime(),
		GraceStartedAt:        tenant.ClearTime(),
		GracePeriodEndDate:    tenant.ClearTime(),
		IsSuspended:           tenant.Set(false),
		SuspendedAt:           tenant.ClearTime(),
		SuspensionReason:      tenant.Set(""),
		DeactivatedAt:         tenant.ClearTime(),
	}
	if p.EditionID != "" {
		patch.EditionID = tenant.Set(p.EditionID)
	}

	after, err := s.commit(ctx, t, change{
		action: ActionInitialized,
		actor:  actorOr(p.Actor),
		to:     to,
		patch:  patch,
		metadata: map[string]any{
			"mode":       string(p.Mode),
			"edition_id": p.EditionID,
		},
	})
	if err != nil {
		return nil, err
	}
	if p.EditionID != "" && p.EditionID != t.EditionID {
		s.entitlements.InvalidateTenant(ctx, tenantID)
	}
	return after, nil
}

func (s *service) OnPaymentSuccess(ctx context.Context, tenantID uuid.UUID, p PaymentSuccess) (*tenant.Tenant, error) {
	if p.PaidThroughDate.IsZero() {
		return nil, ErrInvalidSubscriptionEndDate
	}

	t, err := s.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if t.SubscriptionState == tenant.StateDeactivated {
		s.logger.InfoContext(ctx, "ignoring payment success for deactivated tenant",
			logger.TenantID(tenantID), slog.String("invoice_id", p.InvoiceID))
		return t, nil
	}

	now := s.now().UTC()
	paid := p.PaidThroughDate.UTC()

	patch := tenant.Patch{
		SubscriptionEndDate:  tenant.SetTime(paid),
		LastPaymentSuccessAt: tenant.SetTime(now),
	}
	clearIfSet(&patch.PastDueSince, t.PastDueSince)
	clearIfSet(&patch.GracePeriodEndDate, t.GracePeriodEndDate)
	clearIfSet(&patch.GraceStartedAt, t.GraceStartedAt)
	clearIfSet(&patch.SuspendedAt, t.SuspendedAt)
	ensure(&patch.IsSuspended, t.IsSuspended, false)
	ensure(&patch.SuspensionReason, t.SuspensionReason, "")
	if p.InvoiceID != "" {
		patch.LastInvoiceID = tenant.Set(p.InvoiceID)
	}

	after, err := s.commit(ctx, t, change{
		action: ActionPaymentSucceeded,
		actor:  actorOr(p.Actor),
		to:     tenant.StateActive,
		patch:  patch,
		metadata: map[string]any{
			"invoice_id":        p.InvoiceID,
			"paid_through_date": paid,
		},
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.SubscriptionPaymentSucceeded, tenantID, map[string]any{
		"invoice_id":        p.InvoiceID,
		"paid_through_date": paid,
		"state":             string(after.SubscriptionState),
	})
	return after, nil
}

func (s *service) OnPaymentFailure(ctx context.Context, tenantID uuid.UUID, p PaymentFailure) (*tenant.Tenant, error) {
	t, err := s.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if t.SubscriptionState == tenant.StateDeactivated {
		s.logger.InfoContext(ctx, "ignoring payment failure for deactivated tenant",
			logger.TenantID(tenantID), slog.String("invoice_id", p.InvoiceID))
		return t, nil
	}

	failedAt := p.FailedAt
	if failedAt.IsZero() {
		failedAt = s.now()
	}
	failedAt = failedAt.UTC()

	graceDays := s.graceDays(ctx, tenantID)
	graceEnd := failedAt.AddDate(0, 0, graceDays)

	patch := tenant.Patch{
		GracePeriodEndDate:   tenant.SetTime(graceEnd),
		LastPaymentFailureAt: tenant.SetTime(failedAt),
	}
	if t.PastDueSince == nil {
		patch.PastDueSince = tenant.SetTime(failedAt)
	}
	if p.InvoiceID != "" {
		patch.LastInvoiceID = tenant.Set(p.InvoiceID)
	}

	after, err := s.commit(ctx, t, change{
		action: ActionPaymentFailed,
		actor:  actorOr(p.Actor),
		to:     tenant.StatePastDue,
		patch:  patch,
		metadata: map[string]any{
			"invoice_id":  p.InvoiceID,
			"reason_code": p.ReasonCode,
			"grace_days":  graceDays,
		},
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.SubscriptionPaymentFailed, tenantID, map[string]any{
		"invoice_id":            p.InvoiceID,
		"reason_code":           p.ReasonCode,
		"failed_at":             failedAt,
		"grace_days":            graceDays,
		"grace_period_end_date": graceEnd,
	})
	return after, nil
}

// graceDays resolves the tenant's grace period. Any failure yields 0.
func (s *service) graceDays(ctx context.Context, tenantID uuid.UUID) int {
	days, err := s.entitlements.Int(ctx, tenantID, feature.KeyGracePeriodDays)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to resolve grace period, using 0 days",
			logger.TenantID(tenantID), logger.Error(err))
		return 0
	}
	if days < 0 {
		return 0
	}
	return int(days)
}
