package subscription

import (
	"github.com/dmitrymomot/entitlekit/pkg/statemachine"
	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

var (
	trialing    = statemachine.StringState(tenant.StateTrialing)
	active      = statemachine.StringState(tenant.StateActive)
	pastDue     = statemachine.StringState(tenant.StatePastDue)
	grace       = statemachine.StringState(tenant.StateGrace)
	suspended   = statemachine.StringState(tenant.StateSuspended)
	deactivated = statemachine.StringState(tenant.StateDeactivated)
)

// Transitions is the subscription state machine.
var Transitions = statemachine.MustNewTable(
	statemachine.WithTransitions(trialing, active, pastDue, deactivated),
	statemachine.WithTransitions(active, pastDue, suspended, deactivated),
	statemachine.WithTransitions(pastDue, active, grace, suspended, deactivated),
	statemachine.WithTransitions(grace, active, suspended, deactivated),
	statemachine.WithTransitions(suspended, active, deactivated),
	statemachine.WithTerminal(deactivated),
)

// AllowedTargets returns the states reachable from s, excluding s itself.
func AllowedTargets(s tenant.SubscriptionState) []tenant.SubscriptionState {
	targets := Transitions.AllowedTargets(statemachine.StringState(s))
	out := make([]tenant.SubscriptionState, 0, len(targets))
	for _, t := range targets {
		out = append(out, tenant.SubscriptionState(t.Name()))
	}
	return out
}

// ValidateTransition returns nil when from -> to is allowed or a no-op.
func ValidateTransition(from, to tenant.SubscriptionState) error {
	return Transitions.Validate(statemachine.StringState(from), statemachine.StringState(to))
}
