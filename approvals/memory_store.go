package approvals

import (
	"context"
	"fmt"
	"sync"
)

type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]Approval
	order []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]Approval)}
}

func (s *MemoryStore) Create(ctx context.Context, a Approval) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[a.ID]; ok {
		return fmt.Errorf("approval %s already exists", a.ID)
	}
	s.byID[a.ID] = clone(a)
	s.order = append(s.order, a.ID)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Approval, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return Approval{}, false, nil
	}
	return clone(a), true, nil
}

func (s *MemoryStore) Decide(ctx context.Context, a Approval) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[a.ID]
	if !ok || cur.Status != StatusPending {
		return false, nil
	}
	cur.Status = a.Status
	cur.ReviewerID = a.ReviewerID
	cur.ReviewNotes = a.ReviewNotes
	cur.DecidedAt = a.DecidedAt
	s.byID[a.ID] = clone(cur)
	return true, nil
}

func (s *MemoryStore) List(ctx context.Context, f Filter) ([]Approval, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Approval
	for _, id := range s.order {
		a := s.byID[id]
		if !f.matches(a) {
			continue
		}
		out = append(out, clone(a))
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func clone(a Approval) Approval {
	if a.DecidedAt != nil {
		t := *a.DecidedAt
		a.DecidedAt = &t
	}
	return a
}
