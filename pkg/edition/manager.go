package edition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlekit/pkg/cache"
	"github.com/dmitrymomot/entitlekit/pkg/feature"
	"github.com/dmitrymomot/entitlekit/pkg/logger"
)

// DefaultCacheTTL is how long edition feature maps are cached.
const DefaultCacheTTL = 3 * time.Minute

// Manager manages editions and their feature assignments.
type Manager interface {
	Create(ctx context.Context, params CreateParams) (*Edition, error)
	Get(ctx context.Context, id string) (*Edition, error)
	List(ctx context.Context) ([]*Edition, error)
	Update(ctx context.Context, id string, params UpdateParams) (*Edition, error)
	Delete(ctx context.Context, id string) error

	// SetFeatures validates assignments against the catalog and replaces the
	// whole assignment set of the edition.
	SetFeatures(ctx context.Context, id string, assignments map[string]string) error
	// GetFeatures returns the (cached) assignment map of the edition.
	GetFeatures(ctx context.Context, id string) (map[string]string, error)
}

// CreateParams describes a new edition. An empty ID is generated.
type CreateParams struct {
	ID           string
	Name         string
	DisplayName  string
	MonthlyPrice int64
	AnnualPrice  int64
	Currency     string
	IsActive     bool
	SortOrder    int
	Features     map[string]string
}

// UpdateParams holds the fields to change. Nil fields are left untouched.
type UpdateParams struct {
	Name         *string
	DisplayName  *string
	MonthlyPrice *int64
	AnnualPrice  *int64
	Currency     *string
	IsActive     *bool
	SortOrder    *int
}

// ChangeHook is called after an edition or its assignments changed.
type ChangeHook func(ctx context.Context, editionID string)

// ManagerOption configures a Manager.
type ManagerOption func(*manager)

// WithCacheTTL sets the feature map cache TTL. Zero disables caching.
func WithCacheTTL(ttl time.Duration) ManagerOption {
	return func(m *manager) {
		if ttl >= 0 {
			m.ttl = ttl
		}
	}
}

// WithChangeHook registers a hook called after every committed change.
func WithChangeHook(hook ChangeHook) ManagerOption {
	return func(m *manager) {
		if hook != nil {
			m.hooks = append(m.hooks, hook)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides the time source used for timestamps and the cache.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *manager) {
		if now != nil {
			m.now = now
		}
	}
}

type manager struct {
	repo    Repository
	catalog *feature.Catalog
	ttl     time.Duration
	hooks   []ChangeHook
	logger  *slog.Logger
	now     func() time.Time
	cache   *cache.TTLCache[string, map[string]string]
}

// NewManager creates an edition manager.
// Panics if repo or catalog is nil.
func NewManager(repo Repository, catalog *feature.Catalog, opts ...ManagerOption) Manager {
	if repo == nil {
		panic("edition: repository is required")
	}
	if catalog == nil {
		panic("edition: feature catalog is required")
	}

	m := &manager{
		repo:    repo,
		catalog: catalog,
		ttl:     DefaultCacheTTL,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.cache = cache.NewTTLCache[string, map[string]string](m.ttl, cache.WithClock(m.now))

	return m
}

func (m *manager) Create(ctx context.Context, params CreateParams) (*Edition, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrInvalidEditionName
	}
	if params.MonthlyPrice < 0 || params.AnnualPrice < 0 {
		return nil, ErrInvalidEditionPrice
	}

	var assignments map[string]string
	if params.Features != nil {
		var err error
		if assignments, err = m.validateAssignments(params.Features); err != nil {
			return nil, err
		}
	}

	if err := m.ensureNameFree(ctx, name, ""); err != nil {
		return nil, err
	}

	id := strings.TrimSpace(params.ID)
	if id == "" {
		id = uuid.NewString()
	} else if _, err := m.repo.FindByID(ctx, id); err == nil {
		return nil, ErrEditionIDTaken
	} else if !errors.Is(err, ErrEditionNotFound) {
		return nil, fmt.Errorf("lookup edition: %w", err)
	}

	now := m.now()
	e := &Edition{
		ID:           id,
		Name:         name,
		DisplayName:  params.DisplayName,
		MonthlyPrice: params.MonthlyPrice,
		AnnualPrice:  params.AnnualPrice,
		Currency:     params.Currency,
		IsActive:     params.IsActive,
		SortOrder:    params.SortOrder,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if e.DisplayName == "" {
		e.DisplayName = name
	}

	if err := m.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create edition: %w", err)
	}

	if assignments != nil {
		if err := m.repo.ReplaceFeatures(ctx, id, assignments); err != nil {
			return nil, fmt.Errorf("store edition features: %w", err)
		}
	}

	m.logger.InfoContext(ctx, "edition created", logger.EditionID(id), slog.String("name", name))
	return e, nil
}

func (m *manager) Get(ctx context.Context, id string) (*Edition, error) {
	return m.repo.FindByID(ctx, id)
}

func (m *manager) List(ctx context.Context) ([]*Edition, error) {
	return m.repo.List(ctx)
}

func (m *manager) Update(ctx context.Context, id string, params UpdateParams) (*Edition, error) {
	e, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if name == "" {
			return nil, ErrInvalidEditionName
		}
		if name != e.Name {
			if err := m.ensureNameFree(ctx, name, id); err != nil {
				return nil, err
			}
		}
		e.Name = name
	}
	if params.DisplayName != nil {
		e.DisplayName = *params.DisplayName
	}
	if params.MonthlyPrice != nil {
		e.MonthlyPrice = *params.MonthlyPrice
	}
	if params.AnnualPrice != nil {
		e.AnnualPrice = *params.AnnualPrice
	}
	if e.MonthlyPrice < 0 || e.AnnualPrice < 0 {
		return nil, ErrInvalidEditionPrice
	}
	if params.Currency != nil {
		e.Currency = *params.Currency
	}
	if params.IsActive != nil {
		e.IsActive = *params.IsActive
	}
	if params.SortOrder != nil {
		e.SortOrder = *params.SortOrder
	}
	e.UpdatedAt = m.now()

	if err := m.repo.Update(ctx, e); err != nil {
		return nil, fmt.Errorf("update edition: %w", err)
	}

	m.changed(ctx, id)
	return e, nil
}

func (m *manager) Delete(ctx context.Context, id string) error {
	if _, err := m.repo.FindByID(ctx, id); err != nil {
		return err
	}
	if err := m.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete edition: %w", err)
	}

	m.logger.InfoContext(ctx, "edition deleted", logger.EditionID(id))
	m.changed(ctx, id)
	return nil
}

func (m *manager) SetFeatures(ctx context.Context, id string, assignments map[string]string) error {
	if _, err := m.repo.FindByID(ctx, id); err != nil {
		return err
	}

	normalized, err := m.validateAssignments(assignments)
	if err != nil {
		return err
	}

	if err := m.repo.ReplaceFeatures(ctx, id, normalized); err != nil {
		return fmt.Errorf("replace edition features: %w", err)
	}

	m.logger.InfoContext(ctx, "edition features replaced",
		logger.EditionID(id),
		slog.Int("count", len(normalized)))
	m.changed(ctx, id)
	return nil
}

func (m *manager) GetFeatures(ctx context.Context, id string) (map[string]string, error) {
	if features, ok := m.cache.Get(id); ok {
		return maps.Clone(features), nil
	}

	if _, err := m.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}

	features, err := m.repo.GetFeaturesMap(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load edition features: %w", err)
	}
	if features == nil {
		features = map[string]string{}
	}

	m.cache.Set(id, features)
	return maps.Clone(features), nil
}

// validateAssignments checks every key and value against the catalog and
// returns the assignments keyed by canonical feature key.
func (m *manager) validateAssignments(assignments map[string]string) (map[string]string, error) {
	normalized := make(map[string]string, len(assignments))
	var errs []error

	for key, raw := range assignments {
		def, err := m.catalog.Get(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := normalized[def.Key]; dup {
			errs = append(errs, fmt.Errorf("feature %q assigned more than once", def.Key))
			continue
		}
		if err := feature.Validate(def, raw); err != nil {
			errs = append(errs, err)
			continue
		}
		normalized[def.Key] = raw
	}

	if len(errs) > 0 {
		return nil, errors.Join(append([]error{ErrInvalidAssignments}, errs...)...)
	}
	return normalized, nil
}

func (m *manager) ensureNameFree(ctx context.Context, name, selfID string) error {
	existing, err := m.repo.FindByName(ctx, name)
	switch {
	case errors.Is(err, ErrEditionNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("lookup edition name: %w", err)
	case existing.ID != selfID:
		return ErrEditionNameTaken
	}
	return nil
}

func (m *manager) changed(ctx context.Context, id string) {
	m.cache.Invalidate(id)
	for _, hook := range m.hooks {
		hook(ctx, id)
	}
}
