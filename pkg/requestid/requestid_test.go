package requestid_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlekit/pkg/requestid"
)

func serve(t *testing.T, inbound string) (seen string, echoed string) {
	t.Helper()

	h := requestid.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = requestid.FromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/tenants", nil)
	if inbound != "" {
		req.Header.Set(requestid.Header, inbound)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return seen, rec.Header().Get(requestid.Header)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("keeps a valid inbound id", func(t *testing.T) {
		t.Parallel()
		seen, echoed := serve(t, "support-ticket_42")
		assert.Equal(t, "support-ticket_42", seen)
		assert.Equal(t, seen, echoed)
	})

	tests := map[string]string{
		"missing":   "",
		"bad chars": "id with spaces; drop table",
		"too long":  strings.Repeat("a", 129),
	}
	for name, inbound := range tests {
		t.Run("replaces "+name, func(t *testing.T) {
			t.Parallel()
			seen, echoed := serve(t, inbound)
			_, err := uuid.Parse(seen)
			require.NoError(t, err)
			assert.Equal(t, seen, echoed)
		})
	}
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	_, ok := requestid.LoggerExtractor()(context.Background())
	assert.False(t, ok)

	attr, ok := requestid.LoggerExtractor()(requestid.WithContext(context.Background(), "req-7"))
	require.True(t, ok)
	assert.Equal(t, "request_id", attr.Key)
	assert.Equal(t, "req-7", attr.Value.String())
}
