package audit

import (
	"context"
	"slices"
	"sync"
)

// MemoryStorage keeps records in memory. Intended for tests and development.
type MemoryStorage struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryStorage creates an empty memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Store(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func (s *MemoryStorage) StoreBatch(_ context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

// Query returns matching records in insertion order.
func (s *MemoryStorage) Query(_ context.Context, c Criteria) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	skipped := 0
	for _, r := range s.records {
		if !c.Matches(r) {
			continue
		}
		if skipped < c.Offset {
			skipped++
			continue
		}
		out = append(out, r)
		if c.Limit > 0 && len(out) == c.Limit {
			break
		}
	}
	return out, nil
}

// All returns a copy of every stored record.
func (s *MemoryStorage) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records)
}

// Len returns the number of stored records.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
