package tenant_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlekit/pkg/store/memstore"
	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

func TestMiddleware(t *testing.T) {
	t.Parallel()

	known := &tenant.Tenant{ID: uuid.New(), Name: "Acme Library", SubscriptionState: tenant.StateActive}
	repo := memstore.NewTenants(known)
	mw := tenant.Middleware(tenant.NewHeaderResolver(""), repo)

	t.Run("adds tenant to context", func(t *testing.T) {
		t.Parallel()

		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := tenant.FromContext(r.Context())
			require.True(t, ok)
			assert.Equal(t, known.ID, got.ID)

			id, ok := tenant.IDFromContext(r.Context())
			require.True(t, ok)
			assert.Equal(t, known.ID, id)
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/features", nil)
		req.Header.Set("X-Tenant-ID", known.ID.String())
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("passes through without identifier", func(t *testing.T) {
		t.Parallel()

		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok := tenant.FromContext(r.Context())
			assert.False(t, ok)
			w.WriteHeader(http.StatusNoContent)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("rejects malformed identifier", func(t *testing.T) {
		t.Parallel()

		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not be called")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Tenant-ID", "acme")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown tenant", func(t *testing.T) {
		t.Parallel()

		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not be called")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Tenant-ID", uuid.NewString())
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("skip paths", func(t *testing.T) {
		t.Parallel()

		skipping := tenant.Middleware(tenant.NewHeaderResolver(""), repo, tenant.WithSkipPaths("/healthz"))
		handler := skipping(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("X-Tenant-ID", "not-a-uuid")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequireTenant(t *testing.T) {
	t.Parallel()

	handler := tenant.RequireTenant(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(tenant.WithTenant(req.Context(), &tenant.Tenant{ID: uuid.New()}))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestResolvers(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/tenants/abc/features", nil)

	id, err := tenant.NewPathResolver(2).Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	id, err = tenant.NewPathResolver(9).Resolve(req)
	require.NoError(t, err)
	assert.Empty(t, id)

	_, err = tenant.NewPathResolver(0).Resolve(req)
	assert.Error(t, err)

	composite := tenant.NewCompositeResolver(tenant.NewHeaderResolver(""), tenant.NewPathResolver(2))
	id, err = composite.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	fn := tenant.ResolverFunc(func(*http.Request) (string, error) { return "fixed", nil })
	id, err = fn.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, "fixed", id)
}

func TestParseID(t *testing.T) {
	t.Parallel()

	want := uuid.New()
	got, err := tenant.ParseID(want.String())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = tenant.ParseID("nope")
	assert.ErrorIs(t, err, tenant.ErrInvalidIdentifier)

	_, err = tenant.ParseID(uuid.Nil.String())
	assert.ErrorIs(t, err, tenant.ErrInvalidIdentifier)
}
