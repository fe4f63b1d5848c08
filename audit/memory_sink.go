package audit

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemorySink keeps entries in process memory. Used for demo mode and tests.
type MemorySink struct {
	mu      sync.RWMutex
	entries []Entry
	closed  bool
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Write(ctx context.Context, e *Entry) error {
	_ = ctx
	if e == nil {
		return fmt.Errorf("nil audit entry")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("memory sink is closed")
	}
	e.Seq = int64(len(s.entries)) + 1
	cp := *e
	cp.Metadata = Redact(e.Metadata)
	s.entries = append(s.entries, cp)
	return nil
}

func (s *MemorySink) List(ctx context.Context, q Query) ([]Entry, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("memory sink is closed")
	}
	var out []Entry
	for _, e := range s.entries {
		if !q.matches(e) {
			continue
		}
		cp := e
		cp.Metadata = Redact(e.Metadata)
		out = append(out, cp)
	}
	slices.SortStableFunc(out, newerFirst)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Len counts every entry across orgs.
func (s *MemorySink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
