package mongostore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlekit/pkg/audit"
	"github.com/dmitrymomot/entitlekit/pkg/mongo"
	"github.com/dmitrymomot/entitlekit/pkg/store/mongostore"
)

func TestAuditStorageIntegration(t *testing.T) {
	url := os.Getenv("MONGODB_URL")
	if url == "" {
		t.Skip("MONGODB_URL not set")
	}

	ctx := context.Background()
	db, err := mongo.NewWithDatabase(ctx, mongo.Config{
		ConnectionURL:  url,
		Database:       "entitlekit_test",
		ConnectTimeout: 5 * time.Second,
		RetryAttempts:  1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Client().Disconnect(context.Background()) })

	collection := "audit_" + uuid.NewString()
	storage, err := mongostore.NewAuditStorage(ctx, db, mongostore.WithCollection(collection))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Collection(collection).Drop(context.Background()) })

	tenantID := uuid.New()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, storage.Store(ctx, audit.Record{
		TenantID: tenantID, Action: "subscription.state_changed", Result: audit.ResultSuccess,
		After: map[string]any{"state": "grace"}, CreatedAt: base,
	}))
	require.NoError(t, storage.StoreBatch(ctx, []audit.Record{
		{TenantID: tenantID, Action: "subscription.payment_failed", Result: audit.ResultFailure, CreatedAt: base.Add(time.Minute)},
		{TenantID: uuid.New(), Action: "subscription.payment_failed", Result: audit.ResultFailure, CreatedAt: base.Add(time.Minute)},
	}))

	got, err := storage.Query(ctx, audit.Criteria{TenantID: tenantID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "subscription.state_changed", got[0].Action)
	assert.Equal(t, map[string]any{"state": "grace"}, got[0].After)

	got, err = storage.Query(ctx, audit.Criteria{Action: "subscription.payment_failed", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
