// Package approvals tracks AI-generated artifacts through human review.
//
// An artifact starts pending and is decided exactly once: approved, rejected,
// or revision_requested. A decided record never changes again; a revision is a
// new pending artifact whose Supersedes field names the original.
package approvals

import (
	"context"
	"fmt"
	"time"

	"github.com/quailyquaily/trustops/audit"
	"github.com/quailyquaily/trustops/fault"
)

type Status string

const (
	StatusPending           Status = "pending"
	StatusApproved          Status = "approved"
	StatusRejected          Status = "rejected"
	StatusRevisionRequested Status = "revision_requested"
)

type Decision string

const (
	DecisionApprove         Decision = "approve"
	DecisionReject          Decision = "reject"
	DecisionRequestRevision Decision = "request_revision"
)

// ParseDecision accepts exactly the three decision values, case-sensitive.
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(s); d {
	case DecisionApprove, DecisionReject, DecisionRequestRevision:
		return d, nil
	}
	return "", fmt.Errorf("decision %q: %w (want approve, reject or request_revision)", s, fault.ErrInvalidAction)
}

func (d Decision) Status() Status {
	switch d {
	case DecisionApprove:
		return StatusApproved
	case DecisionReject:
		return StatusRejected
	case DecisionRequestRevision:
		return StatusRevisionRequested
	}
	return ""
}

// AuditAction is the trail action recorded for the decision, e.g. "ai.approve".
func (d Decision) AuditAction() string { return "ai." + string(d) }

// Common artifact types. Type is open-ended; these are the ones the AI features produce.
const (
	TypeGapAnalysis = "gap_analysis"
	TypePolicyDraft = "policy_draft"
)

type Approval struct {
	ID          string     `json:"id" yaml:"id"`
	OrgID       string     `json:"orgId" yaml:"orgId"`
	Type        string     `json:"type" yaml:"type"`
	Content     string     `json:"content" yaml:"content"`
	Status      Status     `json:"status" yaml:"status"`
	RequestedBy string     `json:"requestedBy,omitempty" yaml:"requestedBy,omitempty"`
	ReviewerID  string     `json:"reviewerId,omitempty" yaml:"reviewerId,omitempty"`
	ReviewNotes string     `json:"reviewNotes,omitempty" yaml:"reviewNotes,omitempty"`
	Supersedes  string     `json:"supersedes,omitempty" yaml:"supersedes,omitempty"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"createdAt"`
	DecidedAt   *time.Time `json:"decidedAt,omitempty" yaml:"decidedAt,omitempty"`
}

type CreateInput struct {
	OrgID       string
	Type        string
	Content     string
	RequestedBy string
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	OrgID      string
	Status     Status
	Type       string
	Supersedes string
	Limit      int
}

func (f Filter) matches(a Approval) bool {
	if f.OrgID != "" && a.OrgID != f.OrgID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.Supersedes != "" && a.Supersedes != f.Supersedes {
		return false
	}
	return true
}

type Store interface {
	Create(ctx context.Context, a Approval) error
	Get(ctx context.Context, id string) (Approval, bool, error)
	// Decide persists a decided record only while the stored one is still
	// pending, and reports whether it did.
	Decide(ctx context.Context, a Approval) (bool, error)
	// List returns matches oldest first.
	List(ctx context.Context, f Filter) ([]Approval, error)
}

// Auditor is the slice of *audit.Trail the registry needs.
type Auditor interface {
	Append(ctx context.Context, e audit.Entry) (string, error)
}
