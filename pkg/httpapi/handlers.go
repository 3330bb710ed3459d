package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlekit/pkg/entitlement"
	"github.com/dmitrymomot/entitlekit/pkg/feature"
	"github.com/dmitrymomot/entitlekit/pkg/logger"
	"github.com/dmitrymomot/entitlekit/pkg/policy"
	"github.com/dmitrymomot/entitlekit/pkg/subscription"
	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

type handlers struct {
	features      entitlement.Resolver
	subscriptions subscription.Service
	policies      policy.Engine
	tenants       tenant.Repository
	logger        *slog.Logger
	now           func() time.Time
}

// FeatureResponse is a typed feature value.
type FeatureResponse struct {
	Key   string            `json:"key"`
	Type  feature.ValueType `json:"type"`
	Value any               `json:"value"`
	Raw   string            `json:"raw"`
}

func newFeatureResponse(v feature.Value) FeatureResponse {
	resp := FeatureResponse{Key: v.Key, Type: v.Type, Raw: v.Raw}
	switch v.Type {
	case feature.TypeBoolean:
		resp.Value = v.Bool
	case feature.TypeInt:
		resp.Value = v.Int
	case feature.TypeDecimal:
		resp.Value = v.Decimal
	default:
		resp.Value = v.Raw
	}
	return resp
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	he := errorFor(err)
	if he.Status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", slog.String("path", r.URL.Path), logger.Error(err))
		writeJSON(w, he.Status, Envelope{Error: &ErrorDetail{Code: he.Code}})
		return
	}
	writeJSON(w, he.Status, Envelope{Error: &ErrorDetail{Code: he.Code, Message: err.Error()}})
}

func tenantID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		return uuid.Nil, tenant.ErrInvalidIdentifier
	}
	return id, nil
}

func (h *handlers) listFeatures(w http.ResponseWriter, r *http.Request) {
	id, err := tenantID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	values, err := h.features.EffectiveFeatures(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, values)
}

func (h *handlers) getFeature(w http.ResponseWriter, r *http.Request) {
	id, err := tenantID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.features.FeatureValue(r.Context(), id, chi.URLParam(r, "key"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, newFeatureResponse(v))
}

func (h *handlers) explainFeature(w http.ResponseWriter, r *http.Request) {
	id, err := tenantID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	exp, err := h.features.Explain(r.Context(), id, chi.URLParam(r, "key"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, exp)
}

func (h *handlers) getSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := tenantID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	snap, err := h.subscriptions.GetTenantSubscriptionSnapshot(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, snap)
}

// getDecision previews the policy decision without evaluating or applying it.
func (h *handlers) getDecision(w http.ResponseWriter, r *http.Request) {
	id, err := tenantID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.tenants.FindByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.policies.ResolvePolicy(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, policy.Decide(t, p, h.now().UTC()))
}
