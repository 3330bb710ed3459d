// Package policy decides what happens to a tenant whose subscription lapsed.
//
// The effective Policy of a tenant merges, in precedence order, the tenant's
// own ExpirationPolicy, the GlobalConfig loaded from the environment and the
// built-in defaults (suspend, 7 grace days, notify 14/7/3/1 days before
// expiry, 2-day past-due window, 30-day max past due).
//
// Engine.Evaluate first runs the lifecycle service's time-driven evaluation
// and then computes a Decision. Decisions are not persisted; ApplyDecision
// carries one out through the lifecycle service.
package policy
