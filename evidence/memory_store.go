package evidence

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]Item
	order []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]Item)}
}

func (s *MemoryStore) Create(ctx context.Context, items []Item) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		if _, ok := s.byID[it.ID]; ok {
			return fmt.Errorf("evidence %s already exists", it.ID)
		}
	}
	for _, it := range items {
		s.byID[it.ID] = cloneItem(it)
		s.order = append(s.order, it.ID)
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Item, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.byID[id]
	if !ok {
		return Item{}, false, nil
	}
	return cloneItem(it), true, nil
}

func (s *MemoryStore) SetReview(ctx context.Context, it Item) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[it.ID]
	if !ok {
		return fmt.Errorf("evidence %s does not exist", it.ID)
	}
	cur.ReviewStatus = it.ReviewStatus
	cur.ReviewedBy = it.ReviewedBy
	cur.ReviewedAt = it.ReviewedAt
	s.byID[it.ID] = cloneItem(cur)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, f Filter) ([]Item, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Item
	for _, id := range slices.Backward(s.order) {
		if it := s.byID[id]; f.matches(it) {
			out = append(out, cloneItem(it))
		}
	}
	slices.SortStableFunc(out, func(a, b Item) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func cloneItem(it Item) Item {
	if it.ReviewedAt != nil {
		t := *it.ReviewedAt
		it.ReviewedAt = &t
	}
	return it
}
