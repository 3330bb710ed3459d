package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlekit/pkg/edition"
	"github.com/dmitrymomot/entitlekit/pkg/entitlement"
	"github.com/dmitrymomot/entitlekit/pkg/feature"
	"github.com/dmitrymomot/entitlekit/pkg/httpapi"
	"github.com/dmitrymomot/entitlekit/pkg/metrics"
	"github.com/dmitrymomot/entitlekit/pkg/policy"
	"github.com/dmitrymomot/entitlekit/pkg/requestid"
	"github.com/dmitrymomot/entitlekit/pkg/store/memstore"
	"github.com/dmitrymomot/entitlekit/pkg/subscription"
	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	router   http.Handler
	tenantID uuid.UUID
	lapsedID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()
	clock := func() time.Time { return now }

	editions := memstore.NewEditions()
	require.NoError(t, editions.Create(ctx, &edition.Edition{ID: "standard", Name: "standard", IsActive: true}))
	require.NoError(t, editions.ReplaceFeatures(ctx, "standard", map[string]string{
		feature.KeyLoansMaxActive: "25",
	}))

	end := now.Add(30 * 24 * time.Hour)
	lapsed := now.Add(-5 * 24 * time.Hour)
	f := &fixture{tenantID: uuid.New(), lapsedID: uuid.New()}
	tenants := memstore.NewTenants(
		&tenant.Tenant{ID: f.tenantID, EditionID: "standard", SubscriptionState: tenant.StateActive, SubscriptionEndDate: &end},
		&tenant.Tenant{ID: f.lapsedID, EditionID: "standard", SubscriptionState: tenant.StatePastDue, SubscriptionEndDate: &lapsed},
	)
	overrides := memstore.NewOverrides()
	overrides.Set(f.tenantID, feature.KeyBrandingTheme, "dark")

	catalog := feature.MustNewCatalog(feature.BuiltinDefinitions()...)
	manager := edition.NewManager(editions, catalog)
	resolver := entitlement.NewResolver(catalog, tenants, overrides, manager, entitlement.WithClock(clock))
	lifecycle := subscription.NewService(tenants, manager, resolver, subscription.WithClock(clock))
	engine := policy.NewEngine(tenants, lifecycle, policy.WithClock(clock))

	f.router = httpapi.NewRouter(httpapi.Deps{
		Features:      resolver,
		Subscriptions: lifecycle,
		Policies:      engine,
		Tenants:       tenants,
		Metrics:       metrics.New(false),
		Webhook: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}),
		Clock: clock,
	})
	return f
}

type envelope struct {
	Data  json.RawMessage      `json:"data"`
	Error *httpapi.ErrorDetail `json:"error"`
}

func (f *fixture) get(t *testing.T, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestListFeatures(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec, env := f.get(t, "/tenants/"+f.tenantID.String()+"/features")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestid.Header))

	var values map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &values))
	assert.Equal(t, "25", values[feature.KeyLoansMaxActive])
	assert.Equal(t, "dark", values[feature.KeyBrandingTheme])
	assert.Equal(t, "7", values[feature.KeyGracePeriodDays])
}

func TestGetFeature(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec, env := f.get(t, "/tenants/"+f.tenantID.String()+"/features/"+feature.KeyLoansMaxActive)
	require.Equal(t, http.StatusOK, rec.Code)

	var got httpapi.FeatureResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, feature.KeyLoansMaxActive, got.Key)
	assert.Equal(t, feature.TypeInt, got.Type)
	assert.InDelta(t, 25, got.Value, 0)
	assert.Equal(t, "25", got.Raw)
}

func TestExplainFeature(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec, env := f.get(t, "/tenants/"+f.tenantID.String()+"/features/"+feature.KeyLoansMaxActive+"/explain")
	require.Equal(t, http.StatusOK, rec.Code)

	var exp entitlement.Explanation
	require.NoError(t, json.Unmarshal(env.Data, &exp))
	assert.Equal(t, entitlement.LayerEdition, exp.Source)
	assert.Equal(t, "standard", exp.EditionID)
	assert.NotEmpty(t, exp.Steps)
}

func TestGetSubscription(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec, env := f.get(t, "/tenants/"+f.tenantID.String()+"/subscription")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap subscription.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, f.tenantID, snap.TenantID)
	assert.Equal(t, tenant.StateActive, snap.State)
}

func TestGetDecisionDoesNotMutate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec, env := f.get(t, "/tenants/"+f.lapsedID.String()+"/subscription/decision")
	require.Equal(t, http.StatusOK, rec.Code)

	var d policy.Decision
	require.NoError(t, json.Unmarshal(env.Data, &d))
	assert.True(t, d.IsExpired)
	assert.True(t, d.IsPastDue)
	assert.True(t, d.PastDueWindowElapsed)
	assert.Equal(t, policy.ActionNone, d.ActionToApply)
	assert.Equal(t, policy.ReasonWithinGrace, d.Reason)
	require.NotNil(t, d.GraceDeadline)
	assert.Equal(t, now.Add(4*24*time.Hour), d.GraceDeadline.UTC())

	rec, env = f.get(t, "/tenants/"+f.lapsedID.String()+"/subscription")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap subscription.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, tenant.StatePastDue, snap.State)
}

func TestErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"bad tenant id", "/tenants/not-a-uuid/features", http.StatusBadRequest, "bad_request"},
		{"unknown tenant", "/tenants/" + uuid.NewString() + "/subscription", http.StatusNotFound, "not_found"},
		{"unknown feature", "/tenants/" + f.tenantID.String() + "/features/nope.enabled", http.StatusNotFound, "not_found"},
		{"unknown route", "/nowhere", http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec, env := f.get(t, tt.path)
			assert.Equal(t, tt.status, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestInfraRoutes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	rec, _ := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/paddle", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestNewRouterPanicsWithoutDeps(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { httpapi.NewRouter(httpapi.Deps{}) })
}
