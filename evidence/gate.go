package evidence

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

const (
	TargetType = "evidence"

	ActionApproved = "evidence.approved"
	ActionRejected = "evidence.rejected"
)

// Gate is the only writer of Item.ReviewStatus. Each approve or reject call
// appends exactly one audit entry, even when the status does not change.
type Gate struct {
	store Store
	trail Auditor
	locks lockmap.Map
	now   func() time.Time
	log   *slog.Logger
}

type Option func(*Gate)

func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(g *Gate) {
		if log != nil {
			g.log = log
		}
	}
}

func NewGate(store Store, trail Auditor, opts ...Option) *Gate {
	g := &Gate{store: store, trail: trail, now: time.Now, log: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Ingest records new items as PENDING. It writes no audit entry of its own.
func (g *Gate) Ingest(ctx context.Context, orgID string, in []NewItem) ([]Item, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, fmt.Errorf("org id is required: %w", fault.ErrInvalidInput)
	}
	if len(in) == 0 {
		return nil, nil
	}
	now := g.now().UTC()
	items := make([]Item, 0, len(in))
	for i, n := range in {
		title := strings.TrimSpace(n.Title)
		if title == "" {
			return nil, fmt.Errorf("evidence #%d: title is required: %w", i, fault.ErrInvalidInput)
		}
		collected := n.CollectedAt.UTC()
		if n.CollectedAt.IsZero() {
			collected = now
		}
		items = append(items, Item{
			ID:            "evd_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
			OrgID:         orgID,
			IntegrationID: strings.TrimSpace(n.IntegrationID),
			ControlID:     strings.TrimSpace(n.ControlID),
			Title:         title,
			Source:        strings.TrimSpace(n.Source),
			SourceRef:     strings.TrimSpace(n.SourceRef),
			ReviewStatus:  StatusPending,
			CollectedAt:   collected,
			CreatedAt:     now,
		})
	}
	if err := g.store.Create(ctx, items); err != nil {
		return nil, fmt.Errorf("store evidence: %w", err)
	}
	g.log.Info("evidence_ingested", "org_id", orgID, "count", len(items))
	return items, nil
}

// Approve marks the item APPROVED. Re-approving is allowed and recorded again.
func (g *Gate) Approve(ctx context.Context, orgID, id, actorID string) (Item, error) {
	return g.review(ctx, orgID, id, actorID, StatusApproved, nil)
}

// Reject marks the item REJECTED and keeps reason in the audit metadata.
func (g *Gate) Reject(ctx context.Context, orgID, id, actorID, reason string) (Item, error) {
	return g.review(ctx, orgID, id, actorID, StatusRejected, map[string]any{"reason": reason})
}

func (g *Gate) review(ctx context.Context, orgID, id, actorID string, to ReviewStatus, extra map[string]any) (Item, error) {
	orgID = strings.TrimSpace(orgID)
	id = strings.TrimSpace(id)
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return Item{}, fmt.Errorf("actor id is required: %w", fault.ErrInvalidInput)
	}

	unlock := g.locks.Lock(id)
	defer unlock()

	it, err := g.load(ctx, orgID, id)
	if err != nil {
		return Item{}, err
	}
	prev := it.ReviewStatus
	reviewedAt := g.now().UTC()
	it.ReviewStatus = to
	it.ReviewedBy = actorID
	it.ReviewedAt = &reviewedAt
	if err := g.store.SetReview(ctx, it); err != nil {
		return Item{}, fmt.Errorf("store review of %s: %w", id, err)
	}

	action := ActionApproved
	if to == StatusRejected {
		action = ActionRejected
	}
	meta := map[string]any{
		"previousStatus": string(prev),
		"status":         string(to),
	}
	if it.ControlID != "" {
		meta["controlId"] = it.ControlID
	}
	for k, v := range extra {
		meta[k] = v
	}
	if _, err := g.trail.Append(ctx, audit.Entry{
		OrgID:      orgID,
		ActorID:    actorID,
		Action:     action,
		TargetType: TargetType,
		TargetID:   it.ID,
		Metadata:   meta,
	}); err != nil {
		return it, err
	}
	g.log.Info("evidence_reviewed", "id", it.ID, "org_id", orgID, "status", string(to), "previous_status", string(prev))
	return it, nil
}

// Get returns the item only when it belongs to orgID; otherwise NotFound.
func (g *Gate) Get(ctx context.Context, orgID, id string) (Item, error) {
	return g.load(ctx, strings.TrimSpace(orgID), strings.TrimSpace(id))
}

// List returns the org's items newest first, optionally by status.
func (g *Gate) List(ctx context.Context, orgID string, status ReviewStatus, limit int) ([]Item, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, fmt.Errorf("org id is required: %w", fault.ErrInvalidInput)
	}
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("review status %q: %w", status, fault.ErrInvalidInput)
	}
	out, err := g.store.List(ctx, Filter{OrgID: orgID, Status: status, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	return out, nil
}

func (g *Gate) load(ctx context.Context, orgID, id string) (Item, error) {
	it, ok, err := g.store.Get(ctx, id)
	if err != nil {
		return Item{}, fmt.Errorf("load evidence %s: %w", id, err)
	}
	if !ok || it.OrgID != orgID {
		return Item{}, fmt.Errorf("evidence %q in org %q: %w", id, orgID, fault.ErrNotFound)
	}
	return it, nil
}
