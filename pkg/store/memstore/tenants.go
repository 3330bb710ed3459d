package memstore

import (
	"bytes"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

// Tenants is an in-memory tenant.Repository.
type Tenants struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]*tenant.Tenant
	updates int
	now     func() time.Time
}

// NewTenants creates an empty tenant store.
func NewTenants(seed ...*tenant.Tenant) *Tenants {
	s := &Tenants{
		tenants: make(map[uuid.UUID]*tenant.Tenant),
		now:     time.Now,
	}
	for _, t := range seed {
		s.Put(t)
	}
	return s
}

// Put inserts or replaces a tenant.
func (s *Tenants) Put(t *tenant.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = t.Clone()
}

// Updates returns the number of successful Update calls.
func (s *Tenants) Updates() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updates
}

func (s *Tenants) FindByID(_ context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[id]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	return t.Clone(), nil
}

func (s *Tenants) Update(_ context.Context, id uuid.UUID, patch tenant.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[id]
	if !ok {
		return tenant.ErrTenantNotFound
	}
	patch.Apply(t)
	t.UpdatedAt = s.now()
	s.updates++
	return nil
}

func (s *Tenants) FindWithFilters(_ context.Context, q tenant.Query) ([]*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*tenant.Tenant
	for id, t := range s.tenants {
		if q.After(id) && q.Matches(t) {
			out = append(out, t.Clone())
		}
	}

	slices.SortFunc(out, func(a, b *tenant.Tenant) int {
		return bytes.Compare(a.ID[:], b.ID[:])
	})

	if limit := q.PageSize(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Overrides is an in-memory tenant.OverrideRepository.
type Overrides struct {
	mu     sync.RWMutex
	values map[uuid.UUID]map[string]string
	reads  int
}

// NewOverrides creates an empty override store.
func NewOverrides() *Overrides {
	return &Overrides{values: make(map[uuid.UUID]map[string]string)}
}

// Set stores a raw override value. Values are not validated here.
func (s *Overrides) Set(tenantID uuid.UUID, key, raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.values[tenantID] == nil {
		s.values[tenantID] = make(map[string]string)
	}
	s.values[tenantID][key] = raw
}

// Delete removes an override.
func (s *Overrides) Delete(tenantID uuid.UUID, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values[tenantID], key)
}

// Reads returns the number of FindMapByTenantID calls.
func (s *Overrides) Reads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reads
}

func (s *Overrides) FindMapByTenantID(_ context.Context, tenantID uuid.UUID) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reads++
	out := make(map[string]string, len(s.values[tenantID]))
	for k, v := range s.values[tenantID] {
		out[k] = v
	}
	return out, nil
}
