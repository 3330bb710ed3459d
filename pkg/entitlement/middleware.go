package entitlement

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

// RequireFeature rejects requests whose tenant does not have the boolean
// feature key enabled. It must run after tenant.Middleware.
func RequireFeature(resolver Resolver, key string, errorHandler tenant.ErrorHandler) func(http.Handler) http.Handler {
	if resolver == nil {
		panic("entitlement: resolver is required")
	}
	if errorHandler == nil {
		errorHandler = defaultErrorHandler
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, ok := tenant.IDFromContext(r.Context())
			if !ok {
				errorHandler(w, r, tenant.ErrNoTenantInContext)
				return
			}

			enabled, err := resolver.Bool(r.Context(), tenantID, key)
			if err != nil {
				errorHandler(w, r, err)
				return
			}
			if !enabled {
				errorHandler(w, r, ErrFeatureDisabled)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrFeatureDisabled):
		http.Error(w, "Feature not available", http.StatusForbidden)
	case errors.Is(err, tenant.ErrNoTenantInContext):
		http.Error(w, "Tenant required", http.StatusUnauthorized)
	case errors.Is(err, tenant.ErrTenantNotFound):
		http.Error(w, "Tenant not found", http.StatusNotFound)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
