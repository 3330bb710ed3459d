// Package tenant defines the tenant aggregate with its subscription fields,
// the repository ports the engine depends on, and HTTP helpers that place the
// current tenant into the request context.
//
// The engine never creates or deletes tenants. It reads them through
// Repository.FindByID, patches subscription fields through Repository.Update,
// and walks them page by page through Repository.FindWithFilters:
//
//	page, err := repo.FindWithFilters(ctx, tenant.Query{
//		States:    []tenant.SubscriptionState{tenant.StateActive},
//		EndBefore: &now,
//		Limit:     100,
//	})
//
// Patch carries only the fields that change. A field is written when its
// Set flag is true, so a nil time pointer clears the column:
//
//	patch := tenant.Patch{
//		SubscriptionState: tenant.Set(tenant.StatePastDue),
//		PastDueSince:      tenant.SetTime(now),
//		GraceStartedAt:    tenant.ClearTime(),
//	}
//
// Middleware resolves the tenant ID from a request (header, path segment, or a
// custom ResolverFunc), loads the tenant and stores it in the context.
package tenant
