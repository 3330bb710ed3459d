// Package audit records immutable audit entries for subscription changes.
//
// Every committed subscription write produces one Record holding the
// tenant snapshot before and after the change, the state version, the actor
// and free-form metadata. Records are never updated or deleted.
//
//	rec := audit.NewRecorder(audit.NewMemoryStorage())
//	err := rec.Record(ctx, tenantID, "subscription.payment_failed",
//		audit.WithActor("billing"),
//		audit.WithSnapshots(before, after),
//		audit.WithStateVersion(after.StateVersion),
//		audit.WithMetadata("invoice_id", "inv_42"),
//	)
//
// Storage is pluggable. MemoryStorage is provided here; PostgreSQL and
// MongoDB storages live in the store packages. Storages that can write in
// bulk may be wrapped with NewAsyncWriter to batch inserts.
package audit
