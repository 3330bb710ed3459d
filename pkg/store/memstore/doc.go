// Package memstore provides in-memory implementations of the tenant, override
// and edition repositories. It is used by tests and by the development mode of
// entitlekitd. All returned values are copies.
package memstore
