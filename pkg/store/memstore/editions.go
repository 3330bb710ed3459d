package memstore

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/dmitrymomot/entitlekit/pkg/edition"
)

// Editions is an in-memory edition.Repository.
type Editions struct {
	mu       sync.RWMutex
	editions map[string]*edition.Edition
	features map[string]map[string]string
	reads    int
}

// NewEditions creates an empty edition store.
func NewEditions() *Editions {
	return &Editions{
		editions: make(map[string]*edition.Edition),
		features: make(map[string]map[string]string),
	}
}

// FeatureReads returns the number of GetFeaturesMap calls.
func (s *Editions) FeatureReads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reads
}

func (s *Editions) FindByID(_ context.Context, id string) (*edition.Edition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.editions[id]
	if !ok {
		return nil, edition.ErrEditionNotFound
	}
	c := *e
	return &c, nil
}

func (s *Editions) FindByName(_ context.Context, name string) (*edition.Edition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.editions {
		if e.Name == name {
			c := *e
			return &c, nil
		}
	}
	return nil, edition.ErrEditionNotFound
}

func (s *Editions) List(_ context.Context) ([]*edition.Edition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*edition.Edition, 0, len(s.editions))
	for _, e := range s.editions {
		c := *e
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *edition.Edition) int {
		if n := cmp.Compare(a.SortOrder, b.SortOrder); n != 0 {
			return n
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (s *Editions) Create(_ context.Context, e *edition.Edition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.editions[e.ID]; exists {
		return edition.ErrEditionIDTaken
	}
	c := *e
	s.editions[e.ID] = &c
	return nil
}

func (s *Editions) Update(_ context.Context, e *edition.Edition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.editions[e.ID]; !exists {
		return edition.ErrEditionNotFound
	}
	c := *e
	s.editions[e.ID] = &c
	return nil
}

func (s *Editions) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.editions[id]; !exists {
		return edition.ErrEditionNotFound
	}
	delete(s.editions, id)
	delete(s.features, id)
	return nil
}

func (s *Editions) GetFeaturesMap(_ context.Context, id string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reads++
	if _, exists := s.editions[id]; !exists {
		return nil, edition.ErrEditionNotFound
	}
	return maps.Clone(s.features[id]), nil
}

func (s *Editions) ReplaceFeatures(_ context.Context, id string, assignments map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.editions[id]; !exists {
		return edition.ErrEditionNotFound
	}
	s.features[id] = maps.Clone(assignments)
	return nil
}
