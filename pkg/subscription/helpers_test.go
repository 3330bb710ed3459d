package subscription_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlekit/pkg/audit"
	"github.com/dmitrymomot/entitlekit/pkg/edition"
	"github.com/dmitrymomot/entitlekit/pkg/entitlement"
	"github.com/dmitrymomot/entitlekit/pkg/events"
	"github.com/dmitrymomot/entitlekit/pkg/feature"
	"github.com/dmitrymomot/entitlekit/pkg/store/memstore"
	"github.com/dmitrymomot/entitlekit/pkg/subscription"
	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type env struct {
	svc       subscription.Service
	resolver  entitlement.Resolver
	tenants   *memstore.Tenants
	overrides *memstore.Overrides
	sink      *events.MemorySink
	audit     *audit.MemoryStorage
	clock     *clock
}

func newEnv(t *testing.T, opts ...subscription.Option) *env {
	t.Helper()

	ctx := context.Background()
	e := &env{
		tenants:   memstore.NewTenants(),
		overrides: memstore.NewOverrides(),
		sink:      events.NewMemorySink(),
		audit:     audit.NewMemoryStorage(),
		clock:     &clock{now: baseTime},
	}

	editions := memstore.NewEditions()
	for _, id := range []string{"standard", "free-edition"} {
		require.NoError(t, editions.Create(ctx, &edition.Edition{ID: id, Name: id, IsActive: true}))
	}
	require.NoError(t, editions.ReplaceFeatures(ctx, "free-edition", map[string]string{
		feature.KeyUsersMaxCount: "1",
	}))

	catalog := feature.MustNewCatalog(feature.BuiltinDefinitions()...)
	manager := edition.NewManager(editions, catalog)
	e.resolver = entitlement.NewResolver(catalog, e.tenants, e.overrides, manager,
		entitlement.WithClock(e.clock.Now))

	opts = append([]subscription.Option{
		subscription.WithClock(e.clock.Now),
		subscription.WithEventSink(e.sink),
		subscription.WithAuditRecorder(audit.NewRecorder(e.audit, audit.WithClock(e.clock.Now))),
	}, opts...)
	e.svc = subscription.NewService(e.tenants, manager, e.resolver, opts...)
	return e
}

// seed stores a tenant in the given state and returns its ID.
func (e *env) seed(state tenant.SubscriptionState, mutate ...func(*tenant.Tenant)) uuid.UUID {
	t := &tenant.Tenant{
		ID:                uuid.New(),
		Name:              "acme",
		EditionID:         "standard",
		SubscriptionState: state,
	}
	for _, fn := range mutate {
		fn(t)
	}
	e.tenants.Put(t)
	return t.ID
}

func (e *env) get(t *testing.T, id uuid.UUID) *tenant.Tenant {
	t.Helper()
	tn, err := e.tenants.FindByID(context.Background(), id)
	require.NoError(t, err)
	return tn
}

func ptr(t time.Time) *time.Time {
	return &t
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

// failingEntitlements always fails to resolve features.
type failingEntitlements struct{}

func (failingEntitlements) Int(context.Context, uuid.UUID, string) (int64, error) {
	return 0, errors.New("resolver unavailable")
}

func (failingEntitlements) InvalidateTenant(context.Context, uuid.UUID) {}
