package integrations

import (
	"context"
	"slices"
	"sync"
)

type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Integration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]Integration)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Integration, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.byID[id]
	if !ok {
		return Integration{}, false, nil
	}
	return in.clone(), true, nil
}

func (s *MemoryStore) Put(ctx context.Context, in Integration) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[in.ID] = in.clone()
	return nil
}

func (s *MemoryStore) List(ctx context.Context, orgID string) ([]Integration, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Integration
	for _, in := range s.byID {
		if in.OrgID == orgID {
			out = append(out, in.clone())
		}
	}
	slices.SortFunc(out, func(a, b Integration) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return compareStrings(a.ID, b.ID)
	})
	return out, nil
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
