package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

// Rules reported in the metadata of evaluated transitions.
const (
	RuleTrialExpired        = "trial-expired"
	RuleSubscriptionExpired = "subscription-expired"
	RuleGraceElapsed        = "grace-elapsed"
	RuleGraceStarted        = "grace-started"
)

// GraceElapsedReason is stored as the suspension reason when grace runs out.
const GraceElapsedReason = "grace period elapsed"

func (s *service) EvaluateTenantSubscriptionState(ctx context.Context, tenantID uuid.UUID, now time.Time) (*tenant.Tenant, error) {
	if now.IsZero() {
		now = s.now()
	}
	now = now.UTC()

	t, err := s.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	rule, c, ok := evaluate(t, now)
	if !ok {
		return t, nil
	}

	c.action = ActionEvaluated
	c.actor = DefaultActor
	c.metadata = map[string]any{"rule": rule, "evaluated_at": now}
	return s.commit(ctx, t, c)
}

// evaluate returns the first matching time-driven transition.
func evaluate(t *tenant.Tenant, now time.Time) (string, change, bool) {
	switch t.SubscriptionState {
	case tenant.StateTrialing:
		if end := t.TrialEnd(); end != nil && end.Before(now) {
			return RuleTrialExpired, toPastDue(t, *end), true
		}

	case tenant.StateActive:
		if end := t.SubscriptionEndDate; end != nil && end.Before(now) {
			return RuleSubscriptionExpired, toPastDue(t, *end), true
		}

	case tenant.StatePastDue:
		end := t.GracePeriodEndDate
		if end == nil {
			break
		}
		if !now.Before(*end) {
			return RuleGraceElapsed, toSuspended(t, now, GraceElapsedReason), true
		}
		if t.GraceStartedAt == nil || !now.Before(*t.GraceStartedAt) {
			c := change{to: tenant.StateGrace}
			if t.GraceStartedAt == nil {
				c.patch.GraceStartedAt = tenant.SetTime(now)
			}
			return RuleGraceStarted, c, true
		}

	case tenant.StateGrace:
		if end := t.GracePeriodEndDate; end != nil && end.Before(now) {
			return RuleGraceElapsed, toSuspended(t, now, GraceElapsedReason), true
		}
	}

	return "", change{}, false
}

// toPastDue keeps an earlier pastDueSince, otherwise the moment the term lapsed.
func toPastDue(t *tenant.Tenant, lapsedAt time.Time) change {
	c := change{to: tenant.StatePastDue}
	if t.PastDueSince == nil {
		c.patch.PastDueSince = tenant.SetTime(lapsedAt)
	}
	return c
}

func toSuspended(t *tenant.Tenant, now time.Time, reason string) change {
	c := change{to: tenant.StateSuspended}
	c.patch.IsSuspended = tenant.Set(true)
	c.patch.SuspendedAt = tenant.SetTime(now)
	ensure(&c.patch.SuspensionReason, t.SuspensionReason, reason)
	return c
}
