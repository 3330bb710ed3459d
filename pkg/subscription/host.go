package subscription

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

// HostAction is an administrative request.
type HostAction struct {
	Reason string
	Actor  string
}

func validateReason(reason string, required bool) (string, error) {
	reason = strings.TrimSpace(reason)
	if required && reason == "" {
		return "", fmt.Errorf("%w: reason is required", ErrInvalidSuspensionReason)
	}
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidSuspensionReason, MaxReasonLength)
	}
	return reason, nil
}

func (s *service) HostSuspendTenant(ctx context.Context, tenantID uuid.UUID, a HostAction) (*tenant.Tenant, error) {
	reason, err := validateReason(a.Reason, true)
	if err != nil {
		return nil, err
	}

	t, err := s.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	c := toSuspended(t, s.now().UTC(), reason)
	if t.SubscriptionState == tenant.StateSuspended && t.SuspendedAt != nil {
		// Keep the original suspension time.
		c.patch.SuspendedAt = tenant.Field[*time.Time]{}
	}
	if t.IsSuspended {
		c.patch.IsSuspended = tenant.Field[bool]{}
	}
	c.action = ActionHostSuspended
	c.actor = actorOr(a.Actor)
	c.metadata = map[string]any{"reason": reason}

	return s.commit(ctx, t, c)
}

func (s *service) HostDeactivateTenant(ctx context.Context, tenantID uuid.UUID, a HostAction) (*tenant.Tenant, error) {
	reason, err := validateReason(a.Reason, false)
	if err != nil {
		return nil, err
	}

	t, err := s.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	c := change{
		action:   ActionHostDeactivated,
		actor:    actorOr(a.Actor),
		to:       tenant.StateDeactivated,
		metadata: map[string]any{"reason": reason},
	}
	if t.DeactivatedAt == nil {
		c.patch.DeactivatedAt = tenant.SetTime(s.now().UTC())
	}
	clearIfSet(&c.patch.GraceStartedAt, t.GraceStartedAt)
	clearIfSet(&c.patch.GracePeriodEndDate, t.GracePeriodEndDate)

	return s.commit(ctx, t, c)
}

func (s *service) HostReactivateTenant(ctx context.Context, tenantID uuid.UUID, a HostAction) (*tenant.Tenant, error) {
	reason, err := validateReason(a.Reason, false)
	if err != nil {
		return nil, err
	}

	t, err := s.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if t.SubscriptionState == tenant.StateDeactivated {
		return nil, fmt.Errorf("%w: tenant is deactivated", ErrReactivationNotAllowed)
	}
	if end := t.SubscriptionEndDate; end != nil && end.Before(now) {
		return nil, fmt.Errorf("%w: subscription ended at %s", ErrReactivationNotAllowed, end.Format(time.RFC3339))
	}

	c := change{
		action:   ActionHostReactivated,
		actor:    actorOr(a.Actor),
		to:       tenant.StateActive,
		metadata: map[string]any{"reason": reason},
	}
	clearIfSet(&c.patch.PastDueSince, t.PastDueSince)
	clearIfSet(&c.patch.GraceStartedAt, t.GraceStartedAt)
	clearIfSet(&c.patch.GracePeriodEndDate, t.GracePeriodEndDate)
	clearIfSet(&c.patch.SuspendedAt, t.SuspendedAt)
	ensure(&c.patch.IsSuspended, t.IsSuspended, false)
	ensure(&c.patch.SuspensionReason, t.SuspensionReason, "")

	return s.commit(ctx, t, c)
}
