// Package entitlement computes the effective feature values of a tenant.
//
// Values cascade through four layers:
//
//  1. catalog defaults
//  2. the tenant's edition assignments
//  3. tenant-specific overrides
//  4. parent gating: a boolean feature is forced to "false" when any boolean
//     ancestor resolves to "false"; ancestors are scanned from the root down
//     and the first disabling one wins
//
// The result is cached per tenant for a short TTL (three minutes by
// default). Edition and override entries with unknown keys or invalid values
// are skipped and logged instead of failing the whole resolution; each such
// problem is logged at most once per TTL window.
//
// Scalar accessors re-parse the cached raw value, so a stored value that
// does not match its declared type fails at read time:
//
//	enabled, err := resolver.Bool(ctx, tenantID, "library.loans.enabled")
//
// Explain reruns the cascade for one key without the cache and returns a
// step-by-step trace for support tooling.
package entitlement
