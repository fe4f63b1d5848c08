package approvals

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quailyquaily/trustops/audit"
	"github.com/quailyquaily/trustops/fault"
	"github.com/quailyquaily/trustops/internal/lockmap"
)

const TargetType = "approval"

type Registry struct {
	store Store
	trail Auditor
	locks lockmap.Map
	now   func() time.Time
	log   *slog.Logger
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

func NewRegistry(store Store, trail Auditor, opts ...Option) *Registry {
	r := &Registry{store: store, trail: trail, now: time.Now, log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create records a new pending artifact produced by an AI action.
func (r *Registry) Create(ctx context.Context, in CreateInput) (Approval, error) {
	typ := strings.TrimSpace(in.Type)
	if typ == "" {
		return Approval{}, fmt.Errorf("approval type is required: %w", fault.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Content) == "" {
		return Approval{}, fmt.Errorf("approval content is required: %w", fault.ErrInvalidInput)
	}
	a := Approval{
		ID:          "apr_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		OrgID:       strings.TrimSpace(in.OrgID),
		Type:        typ,
		Content:     in.Content,
		Status:      StatusPending,
		RequestedBy: strings.TrimSpace(in.RequestedBy),
		CreatedAt:   r.now().UTC(),
	}
	if err := r.store.Create(ctx, a); err != nil {
		return Approval{}, fmt.Errorf("create approval: %w", err)
	}
	r.log.Info("approval_created", "id", a.ID, "org_id", a.OrgID, "type", a.Type)
	return a, nil
}

// Decide applies one human decision to a pending artifact of orgID and appends
// one "ai.<decision>" audit entry. Nothing is written when validation fails; an
// artifact of another org is reported as NotFound.
//
// If the decision was stored but the audit append failed, the decided record
// is returned together with an error wrapping fault.ErrSinkUnavailable.
func (r *Registry) Decide(ctx context.Context, orgID, id, decision, reviewerID, notes string) (Approval, error) {
	d, err := ParseDecision(decision)
	if err != nil {
		return Approval{}, err
	}
	reviewerID = strings.TrimSpace(reviewerID)
	if reviewerID == "" {
		return Approval{}, fmt.Errorf("reviewer id is required: %w", fault.ErrInvalidInput)
	}
	id = strings.TrimSpace(id)

	unlock := r.locks.Lock(id)
	defer unlock()

	a, err := r.load(ctx, orgID, id)
	if err != nil {
		return Approval{}, err
	}
	if a.Status != StatusPending {
		return Approval{}, fmt.Errorf("approval %s is already %s: %w", id, a.Status, fault.ErrInvalidTransition)
	}

	decidedAt := r.now().UTC()
	a.Status = d.Status()
	a.ReviewerID = reviewerID
	a.ReviewNotes = strings.TrimSpace(notes)
	a.DecidedAt = &decidedAt

	applied, err := r.store.Decide(ctx, a)
	if err != nil {
		return Approval{}, fmt.Errorf("store decision for %s: %w", id, err)
	}
	if !applied {
		// Another writer sharing the store decided first.
		return Approval{}, fmt.Errorf("approval %s is no longer pending: %w", id, fault.ErrInvalidTransition)
	}

	meta := map[string]any{
		"type":           a.Type,
		"previousStatus": string(StatusPending),
		"status":         string(a.Status),
	}
	if a.ReviewNotes != "" {
		meta["notes"] = a.ReviewNotes
	}
	if a.Supersedes != "" {
		meta["supersedes"] = a.Supersedes
	}
	if _, err := r.trail.Append(ctx, audit.Entry{
		OrgID:      a.OrgID,
		ActorID:    reviewerID,
		Action:     d.AuditAction(),
		TargetType: TargetType,
		TargetID:   a.ID,
		Metadata:   meta,
	}); err != nil {
		return a, err
	}
	r.log.Info("approval_decided", "id", a.ID, "decision", string(d), "reviewer_id", reviewerID)
	return a, nil
}

// Revise submits new content for an artifact that was sent back with
// request_revision. The original stays untouched; at most one revision may
// supersede it.
func (r *Registry) Revise(ctx context.Context, orgID, id, content, requestedBy string) (Approval, error) {
	id = strings.TrimSpace(id)
	if strings.TrimSpace(content) == "" {
		return Approval{}, fmt.Errorf("revised content is required: %w", fault.ErrInvalidInput)
	}

	unlock := r.locks.Lock(id)
	defer unlock()

	orig, err := r.load(ctx, orgID, id)
	if err != nil {
		return Approval{}, err
	}
	if orig.Status != StatusRevisionRequested {
		return Approval{}, fmt.Errorf("approval %s is %s, not %s: %w", id, orig.Status, StatusRevisionRequested, fault.ErrInvalidTransition)
	}
	existing, err := r.store.List(ctx, Filter{Supersedes: id, Limit: 1})
	if err != nil {
		return Approval{}, fmt.Errorf("list revisions of %s: %w", id, err)
	}
	if len(existing) > 0 {
		return Approval{}, fmt.Errorf("approval %s already revised by %s: %w", id, existing[0].ID, fault.ErrInvalidTransition)
	}

	next := Approval{
		ID:          "apr_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		OrgID:       orig.OrgID,
		Type:        orig.Type,
		Content:     content,
		Status:      StatusPending,
		RequestedBy: strings.TrimSpace(requestedBy),
		Supersedes:  orig.ID,
		CreatedAt:   r.now().UTC(),
	}
	if err := r.store.Create(ctx, next); err != nil {
		return Approval{}, fmt.Errorf("create revision of %s: %w", id, err)
	}
	r.log.Info("approval_revised", "id", next.ID, "supersedes", orig.ID)
	return next, nil
}

// Get returns the artifact only when it belongs to orgID; otherwise NotFound.
func (r *Registry) Get(ctx context.Context, orgID, id string) (Approval, error) {
	return r.load(ctx, orgID, strings.TrimSpace(id))
}

func (r *Registry) load(ctx context.Context, orgID, id string) (Approval, error) {
	orgID = strings.TrimSpace(orgID)
	a, ok, err := r.store.Get(ctx, id)
	if err != nil {
		return Approval{}, fmt.Errorf("load approval %s: %w", id, err)
	}
	if !ok || a.OrgID != orgID {
		return Approval{}, fmt.Errorf("approval %q in org %q: %w", id, orgID, fault.ErrNotFound)
	}
	return a, nil
}

// ListPending returns every pending artifact, oldest first.
func (r *Registry) ListPending(ctx context.Context) ([]Approval, error) {
	return r.List(ctx, Filter{Status: StatusPending})
}

func (r *Registry) List(ctx context.Context, f Filter) ([]Approval, error) {
	out, err := r.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	return out, nil
}
