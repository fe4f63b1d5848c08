// Package audit is the append-only trail of who did what to which entity.
package audit

import (
	"context"
	"time"
)

// Entry is immutable once appended. Sinks hand out copies.
type Entry struct {
	ID         string         `json:"id" yaml:"id"`
	OrgID      string         `json:"orgId" yaml:"orgId"`
	ActorID    string         `json:"actorId" yaml:"actorId"`
	Action     string         `json:"action" yaml:"action"`
	TargetType string         `json:"targetType" yaml:"targetType"`
	TargetID   string         `json:"targetId" yaml:"targetId"`
	Metadata   map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"createdAt" yaml:"createdAt"`
	// Seq is the insertion sequence assigned by the sink; it breaks CreatedAt ties.
	Seq int64 `json:"seq" yaml:"seq"`
}

// Query selects entries of one org, newest first. TargetType and TargetID are optional filters.
type Query struct {
	OrgID      string
	TargetType string
	TargetID   string
	Limit      int
}

func (q Query) matches(e Entry) bool {
	if e.OrgID != q.OrgID {
		return false
	}
	if q.TargetType != "" && e.TargetType != q.TargetType {
		return false
	}
	if q.TargetID != "" && e.TargetID != q.TargetID {
		return false
	}
	return true
}

// Sink persists entries. There is deliberately no update or delete.
type Sink interface {
	// Write stores e and may set e.Seq.
	Write(ctx context.Context, e *Entry) error
	List(ctx context.Context, q Query) ([]Entry, error)
	Close() error
}

// newerFirst orders by CreatedAt then Seq, both descending.
func newerFirst(a, b Entry) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.Seq > b.Seq:
		return -1
	case a.Seq < b.Seq:
		return 1
	}
	return 0
}
