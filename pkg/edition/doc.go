// Package edition manages editions: named feature bundles (pricing tiers)
// that tenants are assigned to.
//
// Each edition owns a set of feature assignments (feature key -> raw value).
// The set is always replaced as a whole through SetFeatures, never merged.
// Every value is validated against the feature catalog before it is stored.
//
// Manager caches feature maps per edition for the configured TTL and calls
// the registered change hooks whenever an edition or its assignments change,
// so dependent caches (for example the tenant entitlement cache) can be
// invalidated:
//
//	mgr := edition.NewManager(repo, catalog,
//		edition.WithChangeHook(func(ctx context.Context, id string) {
//			resolver.InvalidateEditionImpact(ctx)
//		}),
//	)
package edition
