// Package billing adapts Paddle webhooks to the subscription lifecycle.
//
// PaddleWebhook verifies the Paddle-Signature header with the SDK verifier and
// maps notifications to lifecycle calls:
//
//   - transaction.completed calls OnPaymentSuccess with the end of the billed period
//   - transaction.payment_failed calls OnPaymentFailure at the notification time
//
// The tenant is read from custom_data.tenant_id, which the checkout must set.
// Other event types are acknowledged and ignored. Redelivered notifications
// with an already processed event_id are acknowledged without side effects.
package billing
