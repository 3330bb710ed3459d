package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlekit/pkg/cache"
	"github.com/dmitrymomot/entitlekit/pkg/edition"
	"github.com/dmitrymomot/entitlekit/pkg/feature"
	"github.com/dmitrymomot/entitlekit/pkg/logger"
	"github.com/dmitrymomot/entitlekit/pkg/metrics"
	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

// DefaultCacheTTL is how long a tenant's effective feature map is cached.
const DefaultCacheTTL = 3 * time.Minute

// EditionSource provides edition feature assignments. edition.Manager
// implements it; a missing edition must be reported as edition.ErrEditionNotFound.
type EditionSource interface {
	GetFeatures(ctx context.Context, editionID string) (map[string]string, error)
}

// Resolver computes effective feature values for tenants.
type Resolver interface {
	// EffectiveFeatures returns a copy of the tenant's feature key -> raw value map.
	EffectiveFeatures(ctx context.Context, tenantID uuid.UUID) (map[string]string, error)

	FeatureValue(ctx context.Context, tenantID uuid.UUID, key string) (feature.Value, error)
	Bool(ctx context.Context, tenantID uuid.UUID, key string) (bool, error)
	Int(ctx context.Context, tenantID uuid.UUID, key string) (int64, error)
	Decimal(ctx context.Context, tenantID uuid.UUID, key string) (float64, error)
	String(ctx context.Context, tenantID uuid.UUID, key string) (string, error)

	// InvalidateTenant drops the cached map of one tenant.
	InvalidateTenant(ctx context.Context, tenantID uuid.UUID)
	// InvalidateEditionImpact drops every cached tenant map.
	InvalidateEditionImpact(ctx context.Context)

	// Explain reruns the cascade for key without the cache.
	Explain(ctx context.Context, tenantID uuid.UUID, key string) (*Explanation, error)
}

// Option configures the resolver.
type Option func(*resolver)

// WithCacheTTL sets the cache TTL. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *resolver) {
		if ttl >= 0 {
			r.ttl = ttl
		}
	}
}

// WithCacheSize bounds the number of cached tenants.
func WithCacheSize(n int) Option {
	return func(r *resolver) {
		if n > 0 {
			r.size = n
		}
	}
}

// WithConfig applies cfg.
func WithConfig(cfg Config) Option {
	return func(r *resolver) {
		WithCacheTTL(cfg.CacheTTL)(r)
		WithCacheSize(cfg.CacheSize)(r)
	}
}

// WithClock overrides the time source used by the caches.
func WithClock(now func() time.Time) Option {
	return func(r *resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics records cache hits and misses.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *resolver) {
		r.metrics = m
	}
}

type resolver struct {
	catalog   *feature.Catalog
	tenants   tenant.Repository
	overrides tenant.OverrideRepository
	editions  EditionSource

	ttl     time.Duration
	size    int
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics

	cache  *cache.TTLCache[uuid.UUID, map[string]string]
	logged *cache.TTLCache[string, struct{}]
}

// NewResolver creates a resolver.
// Panics if any dependency is nil.
func NewResolver(
	catalog *feature.Catalog,
	tenants tenant.Repository,
	overrides tenant.OverrideRepository,
	editions EditionSource,
	opts ...Option,
) Resolver {
	if catalog == nil {
		panic("entitlement: feature catalog is required")
	}
	if tenants == nil {
		panic("entitlement: tenant repository is required")
	}
	if overrides == nil {
		panic("entitlement: override repository is required")
	}
	if editions == nil {
		panic("entitlement: edition source is required")
	}

	r := &resolver{
		catalog:   catalog,
		tenants:   tenants,
		overrides: overrides,
		editions:  editions,
		ttl:       DefaultCacheTTL,
		size:      cache.DefaultCapacity,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.logger = r.logger.With(logger.Component("entitlement"))
	r.cache = cache.NewTTLCache[uuid.UUID, map[string]string](r.ttl,
		cache.WithCapacity(r.size), cache.WithClock(r.now))
	r.logged = cache.NewTTLCache[string, struct{}](r.ttl, cache.WithClock(r.now))

	return r
}

func (r *resolver) EffectiveFeatures(ctx context.Context, tenantID uuid.UUID) (map[string]string, error) {
	values, err := r.effective(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return maps.Clone(values), nil
}

// effective returns the cached map itself; callers must not modify it.
func (r *resolver) effective(ctx context.Context, tenantID uuid.UUID) (map[string]string, error) {
	if values, ok := r.cache.Get(tenantID); ok {
		r.metrics.FeatureCache(true)
		return values, nil
	}
	r.metrics.FeatureCache(false)

	t, err := r.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	c, _, issues, err := r.build(ctx, t)
	if err != nil {
		return nil, err
	}
	r.report(ctx, t.ID, issues)

	r.cache.Set(tenantID, c.values)
	return c.values, nil
}

// layers keeps the raw inputs of a cascade run for Explain.
type layers struct {
	editionID      string
	editionMissing bool
	edition        map[string]string
	overrides      map[string]string
}

func (r *resolver) build(ctx context.Context, t *tenant.Tenant) (*cascade, *layers, []Issue, error) {
	c := newCascade(r.catalog)
	in := &layers{editionID: t.EditionID}
	var issues []Issue

	if t.EditionID != "" {
		assignments, err := r.editions.GetFeatures(ctx, t.EditionID)
		switch {
		case errors.Is(err, edition.ErrEditionNotFound):
			in.editionMissing = true
			issues = append(issues, Issue{
				Kind: IssueMissingEdition, Layer: LayerEdition, Source: t.EditionID, Err: err,
			})
		case err != nil:
			return nil, nil, nil, fmt.Errorf("load edition %s features: %w", t.EditionID, err)
		default:
			in.edition = assignments
			issues = append(issues, c.apply(r.catalog, LayerEdition, t.EditionID, assignments)...)
		}
	}

	overrides, err := r.overrides.FindMapByTenantID(ctx, t.ID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load tenant feature overrides: %w", err)
	}
	in.overrides = overrides
	issues = append(issues, c.apply(r.catalog, LayerOverride, t.ID.String(), overrides)...)

	c.gate(r.catalog)
	return c, in, issues, nil
}

// report logs each issue at most once per TTL window.
func (r *resolver) report(ctx context.Context, tenantID uuid.UUID, issues []Issue) {
	for _, is := range issues {
		if !r.logged.SetIfAbsent(is.dedupKey(), struct{}{}) {
			continue
		}

		msg := "skipping invalid feature value"
		switch is.Kind {
		case IssueMissingEdition:
			msg = "edition not found, ignoring edition features"
		case IssueUnknownKey:
			msg = "skipping unknown feature key"
		}

		attrs := []slog.Attr{
			logger.TenantID(tenantID),
			slog.String("layer", string(is.Layer)),
			logger.Error(is.Err),
		}
		if is.Layer == LayerEdition {
			attrs = append(attrs, logger.EditionID(is.Source))
		}
		if is.Key != "" {
			attrs = append(attrs, logger.FeatureKey(is.Key), slog.String("raw", is.Raw))
		}
		r.logger.LogAttrs(ctx, is.Level(), msg, attrs...)
	}
}

func (r *resolver) FeatureValue(ctx context.Context, tenantID uuid.UUID, key string) (feature.Value, error) {
	def, err := r.catalog.Get(key)
	if err != nil {
		return feature.Value{}, err
	}
	return r.parse(ctx, tenantID, def)
}

func (r *resolver) parse(ctx context.Context, tenantID uuid.UUID, def feature.Definition) (feature.Value, error) {
	values, err := r.effective(ctx, tenantID)
	if err != nil {
		return feature.Value{}, err
	}
	return feature.Parse(def, values[def.Key])
}

func (r *resolver) typed(ctx context.Context, tenantID uuid.UUID, key string, want feature.ValueType) (feature.Value, error) {
	def, err := r.catalog.Get(key)
	if err != nil {
		return feature.Value{}, err
	}
	if def.ValueType != want {
		return feature.Value{}, fmt.Errorf("%w: %s is %s, not %s", ErrTypeMismatch, def.Key, def.ValueType, want)
	}
	return r.parse(ctx, tenantID, def)
}

func (r *resolver) Bool(ctx context.Context, tenantID uuid.UUID, key string) (bool, error) {
	v, err := r.typed(ctx, tenantID, key, feature.TypeBoolean)
	return v.Bool, err
}

func (r *resolver) Int(ctx context.Context, tenantID uuid.UUID, key string) (int64, error) {
	v, err := r.typed(ctx, tenantID, key, feature.TypeInt)
	return v.Int, err
}

func (r *resolver) Decimal(ctx context.Context, tenantID uuid.UUID, key string) (float64, error) {
	v, err := r.typed(ctx, tenantID, key, feature.TypeDecimal)
	return v.Decimal, err
}

func (r *resolver) String(ctx context.Context, tenantID uuid.UUID, key string) (string, error) {
	v, err := r.typed(ctx, tenantID, key, feature.TypeString)
	return v.Raw, err
}

func (r *resolver) InvalidateTenant(_ context.Context, tenantID uuid.UUID) {
	r.cache.Invalidate(tenantID)
}

func (r *resolver) InvalidateEditionImpact(ctx context.Context) {
	r.cache.Clear()
	r.logger.DebugContext(ctx, "tenant feature cache cleared after edition change")
}

// lookup finds the raw value assigned to canonical key, matching keys
// case-insensitively. When several spellings exist the last one in sorted
// order wins, as in cascade.apply.
func lookup(catalog *feature.Catalog, assignments map[string]string, canonical string) (string, bool) {
	keys := slices.Sorted(maps.Keys(assignments))

	var (
		raw   string
		found bool
	)
	for _, k := range keys {
		if ck, ok := catalog.CanonicalKey(k); ok && ck == canonical {
			raw, found = assignments[k], true
		}
	}
	return raw, found
}
