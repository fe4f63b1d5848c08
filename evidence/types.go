// Package evidence holds collected compliance evidence and the human review
// gate that approves or rejects it.
package evidence

import (
	"context"
	"time"

	"github.com/quailyquaily/trustops/audit"
)

type ReviewStatus string

const (
	StatusPending  ReviewStatus = "PENDING"
	StatusApproved ReviewStatus = "APPROVED"
	StatusRejected ReviewStatus = "REJECTED"
)

func (s ReviewStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

type Item struct {
	ID            string       `json:"id" yaml:"id"`
	OrgID         string       `json:"orgId" yaml:"orgId"`
	IntegrationID string       `json:"integrationId,omitempty" yaml:"integrationId,omitempty"`
	ControlID     string       `json:"controlId,omitempty" yaml:"controlId,omitempty"`
	Title         string       `json:"title" yaml:"title"`
	Source        string       `json:"source,omitempty" yaml:"source,omitempty"`
	SourceRef     string       `json:"sourceRef,omitempty" yaml:"sourceRef,omitempty"`
	ReviewStatus  ReviewStatus `json:"reviewStatus" yaml:"reviewStatus"`
	ReviewedBy    string       `json:"reviewedBy,omitempty" yaml:"reviewedBy,omitempty"`
	ReviewedAt    *time.Time   `json:"reviewedAt,omitempty" yaml:"reviewedAt,omitempty"`
	CollectedAt   time.Time    `json:"collectedAt" yaml:"collectedAt"`
	CreatedAt     time.Time    `json:"createdAt" yaml:"createdAt"`
}

// NewItem is one piece of evidence as produced by a collector or an upload.
type NewItem struct {
	IntegrationID string
	ControlID     string
	Title         string
	Source        string
	SourceRef     string
	CollectedAt   time.Time
}

type Filter struct {
	OrgID         string
	Status        ReviewStatus
	IntegrationID string
	Limit         int
}

func (f Filter) matches(it Item) bool {
	if f.OrgID != "" && it.OrgID != f.OrgID {
		return false
	}
	if f.Status != "" && it.ReviewStatus != f.Status {
		return false
	}
	if f.IntegrationID != "" && it.IntegrationID != f.IntegrationID {
		return false
	}
	return true
}

type Store interface {
	Create(ctx context.Context, items []Item) error
	Get(ctx context.Context, id string) (Item, bool, error)
	// SetReview overwrites the review fields of an existing item.
	SetReview(ctx context.Context, it Item) error
	// List returns matches newest first.
	List(ctx context.Context, f Filter) ([]Item, error)
}

type Auditor interface {
	Append(ctx context.Context, e audit.Entry) (string, error)
}
