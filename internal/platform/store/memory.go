package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/platform/fhir"
)

// MemoryStore keeps one map partition per resource type behind a single
// RWMutex, so each read-modify-write cycle is atomic. Across separate
// requests the last writer still wins; that weak-consistency trade-off is
// deliberate and covered by tests.
type MemoryStore struct {
	mu         sync.RWMutex
	partitions map[string]map[string]fhir.Resource
	now        func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		partitions: make(map[string]map[string]fhir.Resource),
		now:        time.Now,
	}
}

func (s *MemoryStore) partition(resourceType string) map[string]fhir.Resource {
	p, ok := s.partitions[resourceType]
	if !ok {
		p = make(map[string]fhir.Resource)
		s.partitions[resourceType] = p
	}
	return p
}

func (s *MemoryStore) Create(_ context.Context, r fhir.Resource) (fhir.Resource, error) {
	stored := r.Clone()
	if stored.ID() == "" {
		stored.SetID(uuid.New().String())
	}
	stored.Stamp(s.now())

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.partition(stored.Type())
	if _, exists := p[stored.ID()]; exists {
		return nil, ErrConflict
	}
	p[stored.ID()] = stored
	return stored.Clone(), nil
}

func (s *MemoryStore) Read(_ context.Context, resourceType, id string) (fhir.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.partitions[resourceType][id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, r fhir.Resource) (fhir.Resource, error) {
	stored := r.Clone()
	stored.Stamp(s.now())

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.partitions[stored.Type()]
	if !ok {
		return nil, ErrNotFound
	}
	if _, exists := p[stored.ID()]; !exists {
		return nil, ErrNotFound
	}
	p[stored.ID()] = stored
	return stored.Clone(), nil
}

func (s *MemoryStore) Search(_ context.Context, resourceType string, p Predicate) ([]fhir.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []fhir.Resource{}
	for _, r := range s.partitions[resourceType] {
		if p == nil || p(r) {
			results = append(results, r.Clone())
		}
	}
	return results, nil
}
