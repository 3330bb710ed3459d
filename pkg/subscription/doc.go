// Package subscription implements the tenant billing lifecycle.
//
// A tenant moves through the states trialing, active, past_due, grace,
// suspended and deactivated. Allowed transitions are described by Transitions;
// any other move fails with statemachine.ErrInvalidTransition. Deactivated is
// terminal.
//
// The Service drives those transitions from three sources:
//
//   - billing events: OnPaymentSuccess and OnPaymentFailure
//   - time: EvaluateTenantSubscriptionState, called by scheduled jobs
//   - administrators: HostSuspendTenant, HostDeactivateTenant, HostReactivateTenant
//
// Every committed write increments the tenant's StateVersion and stores an
// audit record with before/after snapshots. A SUBSCRIPTION_STATE_CHANGED event
// is published only when the state itself changes.
//
// # Usage
//
//	svc := subscription.NewService(tenants, editions, resolver,
//	    subscription.WithEventSink(hub),
//	    subscription.WithAuditRecorder(recorder),
//	)
//
//	if _, err := svc.OnPaymentFailure(ctx, tenantID, subscription.PaymentFailure{
//	    FailedAt:  time.Now(),
//	    InvoiceID: "inv_123",
//	}); err != nil {
//	    return err
//	}
//
// RequireActive guards HTTP routes with IsTenantActiveForAccess.
package subscription
