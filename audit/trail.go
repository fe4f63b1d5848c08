package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quailyquaily/trustops/fault"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type Trail struct {
	sink Sink
	now  func() time.Time
	log  *slog.Logger
}

type Option func(*Trail)

func WithClock(now func() time.Time) Option {
	return func(t *Trail) {
		if now != nil {
			t.now = now
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(t *Trail) {
		if log != nil {
			t.log = log
		}
	}
}

func NewTrail(sink Sink, opts ...Option) *Trail {
	t := &Trail{sink: sink, now: time.Now, log: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Append redacts and persists e, returning the new entry id. ID, CreatedAt and
// Seq supplied by the caller are ignored. A sink failure is returned wrapped in
// fault.ErrSinkUnavailable; the entry is never silently dropped.
func (t *Trail) Append(ctx context.Context, e Entry) (string, error) {
	if t == nil || t.sink == nil {
		return "", fmt.Errorf("append audit entry: %w: no sink configured", fault.ErrSinkUnavailable)
	}
	action := strings.TrimSpace(e.Action)
	if i := strings.IndexByte(action, '.'); i <= 0 || i == len(action)-1 {
		return "", fmt.Errorf("invalid audit action %q (want <domain>.<verb>)", e.Action)
	}

	e.ID = uuid.NewString()
	e.Action = action
	e.CreatedAt = t.now().UTC()
	e.Seq = 0
	e.Metadata = Redact(e.Metadata)

	if err := t.sink.Write(ctx, &e); err != nil {
		t.log.Error("audit_sink_error",
			"action", e.Action,
			"target_type", e.TargetType,
			"target_id", e.TargetID,
			"error", err.Error(),
		)
		return "", fmt.Errorf("append audit entry %s: %w: %w", e.Action, fault.ErrSinkUnavailable, err)
	}
	t.log.Debug("audit_appended", "id", e.ID, "action", e.Action, "target_id", e.TargetID)
	return e.ID, nil
}

// List returns the newest entries of an org, at most limit of them.
func (t *Trail) List(ctx context.Context, orgID string, limit int) ([]Entry, error) {
	return t.query(ctx, Query{OrgID: orgID, Limit: limit})
}

// ListTarget returns the history of one entity, newest first.
func (t *Trail) ListTarget(ctx context.Context, orgID, targetType, targetID string, limit int) ([]Entry, error) {
	return t.query(ctx, Query{OrgID: orgID, TargetType: targetType, TargetID: targetID, Limit: limit})
}

func (t *Trail) query(ctx context.Context, q Query) ([]Entry, error) {
	if t == nil || t.sink == nil {
		return nil, fmt.Errorf("list audit entries: %w: no sink configured", fault.ErrSinkUnavailable)
	}
	q.OrgID = strings.TrimSpace(q.OrgID)
	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	}
	if q.Limit > maxListLimit {
		q.Limit = maxListLimit
	}
	out, err := t.sink.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w: %w", fault.ErrSinkUnavailable, err)
	}
	return out, nil
}

func (t *Trail) Close() error {
	if t == nil || t.sink == nil {
		return nil
	}
	return t.sink.Close()
}
