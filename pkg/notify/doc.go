// Package notify turns subscription events into billing emails.
//
// Sink implements events.Sink. It sends an email to the tenant's billing
// address for SUBSCRIPTION_EXPIRING_SOON, SUBSCRIPTION_EXPIRED,
// SUBSCRIPTION_PAYMENT_FAILED and SUBSCRIPTION_PLAN_CHANGED and ignores every
// other event. Tenants without a billing email are skipped.
//
// Combine it with other sinks through events.Multi:
//
//	sink := events.Multi(hub, redisSink, notify.NewSink(tenants, sender))
package notify
