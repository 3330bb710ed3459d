package logger_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlekit/pkg/logger"
)

func TestGroup(t *testing.T) {
	attr := logger.Group("req", slog.String("id", "1"), slog.Int("n", 2))
	require.Equal(t, "req", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "id", g[0].Key)
	assert.Equal(t, "n", g[1].Key)
}

func TestErrors(t *testing.T) {
	err1 := errors.New("first")
	err2 := errors.New("second")

	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, err1, g[0].Value.Any())
	assert.Equal(t, err2, g[1].Value.Any())

	empty := logger.Errors(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestError(t *testing.T) {
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	empty := logger.Error(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestTenantID(t *testing.T) {
	attr := logger.TenantID("t-1")
	require.Equal(t, "tenant_id", attr.Key)
	assert.Equal(t, "t-1", attr.Value.Any())

	assert.True(t, logger.TenantID(nil).Equal(slog.Attr{}))
}

func TestEditionID(t *testing.T) {
	attr := logger.EditionID("free-edition")
	require.Equal(t, "edition_id", attr.Key)
	assert.Equal(t, "free-edition", attr.Value.String())

	assert.True(t, logger.EditionID("").Equal(slog.Attr{}))
}

func TestTransition(t *testing.T) {
	attr := logger.Transition("active", "past_due")
	require.Equal(t, "transition", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "from", g[0].Key)
	assert.Equal(t, "active", g[0].Value.Any())
	assert.Equal(t, "to", g[1].Key)
	assert.Equal(t, "past_due", g[1].Value.Any())
}

func TestDomainAttrs(t *testing.T) {
	tests := []struct {
		attr slog.Attr
		key  string
		want any
	}{
		{logger.FeatureKey("library.enabled"), "feature_key", "library.enabled"},
		{logger.State("grace"), "state", "grace"},
		{logger.Action("SUSPEND"), "action", "SUSPEND"},
		{logger.Actor("system"), "actor", "system"},
		{logger.Job("mark-past-due"), "job", "mark-past-due"},
		{logger.Component("resolver"), "component", "resolver"},
		{logger.Event("SUBSCRIPTION_EXPIRED"), "event", "SUBSCRIPTION_EXPIRED"},
		{logger.RequestID("abc"), "request_id", "abc"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.key, tt.attr.Key)
		assert.Equal(t, tt.want, tt.attr.Value.Any())
	}
}
