package subscription

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

// AccessOptions widens which states count as active.
type AccessOptions struct {
	IncludePastDue bool
	IncludeGrace   bool
}

// Admits reports whether a tenant in state t may access the platform.
func (o AccessOptions) Admits(t *tenant.Tenant) bool {
	if t.IsSuspended {
		return false
	}
	switch t.SubscriptionState {
	case tenant.StateActive, tenant.StateTrialing:
		return true
	case tenant.StatePastDue:
		return o.IncludePastDue
	case tenant.StateGrace:
		return o.IncludeGrace
	default:
		return false
	}
}

func (s *service) IsTenantActiveForAccess(ctx context.Context, tenantID uuid.UUID, opts AccessOptions) (bool, error) {
	t, err := s.load(ctx, tenantID)
	if err != nil {
		return false, err
	}
	switch t.SubscriptionState {
	case tenant.StateSuspended, tenant.StateDeactivated:
		return false, nil
	}
	return opts.Admits(t), nil
}

// RequireActive rejects requests of tenants whose subscription does not admit
// access. It must run after tenant.Middleware.
func RequireActive(svc Service, opts AccessOptions, errorHandler tenant.ErrorHandler) func(http.Handler) http.Handler {
	if svc == nil {
		panic("subscription: service is required")
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

			active, err := svc.IsTenantActiveForAccess(r.Context(), tenantID, opts)
			if err != nil {
				errorHandler(w, r, err)
				return
			}
			if !active {
				errorHandler(w, r, ErrSubscriptionInactive)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrSubscriptionInactive):
		http.Error(w, "Subscription inactive", http.StatusPaymentRequired)
	case errors.Is(err, tenant.ErrNoTenantInContext):
		http.Error(w, "Tenant required", http.StatusUnauthorized)
	case errors.Is(err, tenant.ErrTenantNotFound):
		http.Error(w, "Tenant not found", http.StatusNotFound)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
