package edition_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlekit/pkg/edition"
	"github.com/dmitrymomot/entitlekit/pkg/feature"
	"github.com/dmitrymomot/entitlekit/pkg/store/memstore"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newManager(t *testing.T, opts ...edition.ManagerOption) (edition.Manager, *memstore.Editions, *clock) {
	t.Helper()

	clk := &clock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	repo := memstore.NewEditions()
	catalog := feature.MustNewCatalog(feature.BuiltinDefinitions()...)
	opts = append([]edition.ManagerOption{edition.WithClock(clk.Now)}, opts...)

	return edition.NewManager(repo, catalog, opts...), repo, clk
}

func TestManagerCreate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mgr, _, clk := newManager(t)

	e, err := mgr.Create(ctx, edition.CreateParams{
		ID:       "free-edition",
		Name:     "free",
		IsActive: true,
		Features: map[string]string{"Plugins.Enabled": "false"},
	})
	require.NoError(t, err)
	assert.Equal(t, "free-edition", e.ID)
	assert.Equal(t, "free", e.DisplayName)
	assert.Equal(t, clk.Now(), e.CreatedAt)

	features, err := mgr.GetFeatures(ctx, "free-edition")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{feature.KeyPluginsEnabled: "false"}, features)

	_, err = mgr.Create(ctx, edition.CreateParams{Name: "free"})
	assert.ErrorIs(t, err, edition.ErrEditionNameTaken)

	_, err = mgr.Create(ctx, edition.CreateParams{ID: "free-edition", Name: "other"})
	assert.ErrorIs(t, err, edition.ErrEditionIDTaken)

	_, err = mgr.Create(ctx, edition.CreateParams{Name: "  "})
	assert.ErrorIs(t, err, edition.ErrInvalidEditionName)

	_, err = mgr.Create(ctx, edition.CreateParams{Name: "neg", MonthlyPrice: -1})
	assert.ErrorIs(t, err, edition.ErrInvalidEditionPrice)

	generated, err := mgr.Create(ctx, edition.CreateParams{Name: "pro"})
	require.NoError(t, err)
	assert.NotEmpty(t, generated.ID)
}

func TestManagerSetFeaturesReplacesWholeSet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mgr, _, _ := newManager(t)

	_, err := mgr.Create(ctx, edition.CreateParams{ID: "pro", Name: "pro"})
	require.NoError(t, err)

	require.NoError(t, mgr.SetFeatures(ctx, "pro", map[string]string{
		feature.KeyPluginsEnabled: "true",
		feature.KeyUsersMaxCount:  "25",
	}))
	require.NoError(t, mgr.SetFeatures(ctx, "pro", map[string]string{
		feature.KeyStorageMaxGB: "50",
	}))

	features, err := mgr.GetFeatures(ctx, "pro")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{feature.KeyStorageMaxGB: "50"}, features)
}

func TestManagerSetFeaturesValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mgr, _, _ := newManager(t)

	_, err := mgr.Create(ctx, edition.CreateParams{ID: "pro", Name: "pro"})
	require.NoError(t, err)
	require.NoError(t, mgr.SetFeatures(ctx, "pro", map[string]string{feature.KeyUsersMaxCount: "10"}))

	err = mgr.SetFeatures(ctx, "pro", map[string]string{"unknown.key": "1"})
	assert.ErrorIs(t, err, edition.ErrInvalidAssignments)
	assert.ErrorIs(t, err, feature.ErrUnknownFeatureKey)

	err = mgr.SetFeatures(ctx, "pro", map[string]string{feature.KeyUsersMaxCount: "-3"})
	assert.ErrorIs(t, err, feature.ErrInvalidFeatureValue)

	err = mgr.SetFeatures(ctx, "pro", map[string]string{"users.maxcount": "1", "USERS.MAXCOUNT": "2"})
	assert.ErrorIs(t, err, edition.ErrInvalidAssignments)

	err = mgr.SetFeatures(ctx, "missing", map[string]string{})
	assert.ErrorIs(t, err, edition.ErrEditionNotFound)

	features, err := mgr.GetFeatures(ctx, "pro")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{feature.KeyUsersMaxCount: "10"}, features, "rejected sets leave assignments intact")
}

func TestManagerFeatureCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mgr, repo, clk := newManager(t, edition.WithCacheTTL(time.Minute))

	_, err := mgr.Create(ctx, edition.CreateParams{ID: "pro", Name: "pro"})
	require.NoError(t, err)

	first, err := mgr.GetFeatures(ctx, "pro")
	require.NoError(t, err)
	first["mutated"] = "x"

	second, err := mgr.GetFeatures(ctx, "pro")
	require.NoError(t, err)
	assert.NotContains(t, second, "mutated")
	assert.Equal(t, 1, repo.FeatureReads())

	clk.Advance(time.Minute)
	_, err = mgr.GetFeatures(ctx, "pro")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.FeatureReads())

	require.NoError(t, mgr.SetFeatures(ctx, "pro", map[string]string{feature.KeyPluginsEnabled: "true"}))
	features, err := mgr.GetFeatures(ctx, "pro")
	require.NoError(t, err)
	assert.Equal(t, "true", features[feature.KeyPluginsEnabled])
	assert.Equal(t, 3, repo.FeatureReads())

	_, err = mgr.GetFeatures(ctx, "missing")
	assert.ErrorIs(t, err, edition.ErrEditionNotFound)
}

func TestManagerChangeHooks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var changed []string
	mgr, _, _ := newManager(t, edition.WithChangeHook(func(_ context.Context, id string) {
		changed = append(changed, id)
	}))

	_, err := mgr.Create(ctx, edition.CreateParams{ID: "pro", Name: "pro"})
	require.NoError(t, err)
	assert.Empty(t, changed, "creating an edition affects no tenant")

	require.NoError(t, mgr.SetFeatures(ctx, "pro", nil))

	name := "professional"
	_, err = mgr.Update(ctx, "pro", edition.UpdateParams{Name: &name})
	require.NoError(t, err)

	require.NoError(t, mgr.Delete(ctx, "pro"))
	assert.Equal(t, []string{"pro", "pro", "pro"}, changed)

	_, err = mgr.Get(ctx, "pro")
	assert.ErrorIs(t, err, edition.ErrEditionNotFound)
}

func TestManagerUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mgr, _, clk := newManager(t)

	_, err := mgr.Create(ctx, edition.CreateParams{ID: "a", Name: "alpha"})
	require.NoError(t, err)
	_, err = mgr.Create(ctx, edition.CreateParams{ID: "b", Name: "beta"})
	require.NoError(t, err)

	taken := "alpha"
	_, err = mgr.Update(ctx, "b", edition.UpdateParams{Name: &taken})
	assert.ErrorIs(t, err, edition.ErrEditionNameTaken)

	clk.Advance(time.Hour)
	price := int64(1999)
	active := true
	e, err := mgr.Update(ctx, "b", edition.UpdateParams{MonthlyPrice: &price, IsActive: &active})
	require.NoError(t, err)
	assert.Equal(t, int64(1999), e.MonthlyPrice)
	assert.True(t, e.IsActive)
	assert.Equal(t, clk.Now(), e.UpdatedAt)

	list, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = mgr.Update(ctx, "zzz", edition.UpdateParams{})
	assert.ErrorIs(t, err, edition.ErrEditionNotFound)
}

func TestNewManagerPanics(t *testing.T) {
	t.Parallel()

	catalog := feature.MustNewCatalog()
	assert.Panics(t, func() { edition.NewManager(nil, catalog) })
	assert.Panics(t, func() { edition.NewManager(memstore.NewEditions(), nil) })
}
