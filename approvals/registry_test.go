package approvals

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/quailyquaily/trustops/audit"
	"github.com/quailyquaily/trustops/fault"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := NewSQLiteStore(filepath.Join(t.TempDir(), "approvals.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sq,
	}
}

type brokenAuditor struct{}

func (brokenAuditor) Append(ctx context.Context, e audit.Entry) (string, error) {
	return "", fmt.Errorf("append audit entry %s: %w", e.Action, fault.ErrSinkUnavailable)
}

func newTestRegistry(store Store) (*Registry, *audit.MemorySink) {
	sink := audit.NewMemorySink()
	trail := audit.NewTrail(sink, audit.WithLogger(quietLogger()))
	return NewRegistry(store, trail, WithLogger(quietLogger())), sink
}

func createPending(t *testing.T, r *Registry) Approval {
	t.Helper()
	a, err := r.Create(context.Background(), CreateInput{
		OrgID:       "org_1",
		Type:        TypeGapAnalysis,
		Content:     `{"gaps":["CC6.1"]}`,
		RequestedBy: "usr_ai",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return a
}

func TestRegistry_CreateStartsPending(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			r, sink := newTestRegistry(store)
			a := createPending(t, r)
			if a.Status != StatusPending || a.DecidedAt != nil {
				t.Fatalf("unexpected new approval: %#v", a)
			}
			got, err := r.Get(context.Background(), "org_1", a.ID)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.Content != a.Content || got.Type != TypeGapAnalysis || got.OrgID != "org_1" {
				t.Fatalf("Get() = %#v", got)
			}
			if sink.Len() != 0 {
				t.Fatalf("create should not append audit entries, got %d", sink.Len())
			}
		})
	}
}

func TestRegistry_CreateValidates(t *testing.T) {
	r, _ := newTestRegistry(NewMemoryStore())
	for _, in := range []CreateInput{
		{Type: "", Content: "x"},
		{Type: TypePolicyDraft, Content: "  "},
	} {
		if _, err := r.Create(context.Background(), in); !errors.Is(err, fault.ErrInvalidInput) {
			t.Fatalf("Create(%#v) error = %v, want ErrInvalidInput", in, err)
		}
	}
}

func TestRegistry_DecideRecordsAudit(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r, sink := newTestRegistry(store)
			a := createPending(t, r)

			got, err := r.Decide(ctx, "org_1", a.ID, "approve", "usr_reviewer", "looks right")
			if err != nil {
				t.Fatalf("Decide() error = %v", err)
			}
			if got.Status != StatusApproved || got.ReviewerID != "usr_reviewer" || got.ReviewNotes != "looks right" || got.DecidedAt == nil {
				t.Fatalf("unexpected decided approval: %#v", got)
			}

			stored, _ := r.Get(ctx, "org_1", a.ID)
			if stored.Status != StatusApproved || stored.DecidedAt == nil || !stored.DecidedAt.Equal(*got.DecidedAt) {
				t.Fatalf("stored approval = %#v", stored)
			}

			entries, _ := sink.List(ctx, audit.Query{OrgID: "org_1"})
			if len(entries) != 1 {
				t.Fatalf("expected 1 audit entry, got %d", len(entries))
			}
			e := entries[0]
			if e.Action != "ai.approve" || e.TargetType != TargetType || e.TargetID != a.ID || e.ActorID != "usr_reviewer" {
				t.Fatalf("unexpected audit entry: %#v", e)
			}
			if e.Metadata["status"] != "approved" {
				t.Fatalf("metadata = %#v", e.Metadata)
			}
		})
	}
}

func TestRegistry_DecideTwiceIsInvalidTransition(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r, sink := newTestRegistry(store)
			a := createPending(t, r)

			first, err := r.Decide(ctx, "org_1", a.ID, "reject", "usr_a", "")
			if err != nil {
				t.Fatalf("Decide() error = %v", err)
			}
			_, err = r.Decide(ctx, "org_1", a.ID, "approve", "usr_b", "changed my mind")
			if !errors.Is(err, fault.ErrInvalidTransition) {
				t.Fatalf("second Decide() error = %v, want ErrInvalidTransition", err)
			}
			stored, _ := r.Get(ctx, "org_1", a.ID)
			if stored.Status != StatusRejected || stored.ReviewerID != "usr_a" || !stored.DecidedAt.Equal(*first.DecidedAt) {
				t.Fatalf("state changed after rejected transition: %#v", stored)
			}
			if sink.Len() != 1 {
				t.Fatalf("expected 1 audit entry, got %d", sink.Len())
			}
		})
	}
}

func TestRegistry_DecideErrors(t *testing.T) {
	ctx := context.Background()
	r, sink := newTestRegistry(NewMemoryStore())
	a := createPending(t, r)

	cases := []struct {
		name     string
		id       string
		decision string
		reviewer string
		want     error
	}{
		{"unknown id", "apr_missing", "approve", "usr_1", fault.ErrNotFound},
		{"bad decision", a.ID, "approved", "usr_1", fault.ErrInvalidAction},
		{"wrong case", a.ID, "Approve", "usr_1", fault.ErrInvalidAction},
		{"bad decision on unknown id", "apr_missing", "maybe", "usr_1", fault.ErrInvalidAction},
		{"missing reviewer", a.ID, "approve", " ", fault.ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := r.Decide(ctx, "org_1", tc.id, tc.decision, tc.reviewer, ""); !errors.Is(err, tc.want) {
				t.Fatalf("Decide() error = %v, want %v", err, tc.want)
			}
		})
	}
	stored, _ := r.Get(ctx, "org_1", a.ID)
	if stored.Status != StatusPending {
		t.Fatalf("status changed to %s", stored.Status)
	}
	if sink.Len() != 0 {
		t.Fatalf("failed decisions appended %d entries", sink.Len())
	}
}

func TestRegistry_OtherOrgIsNotFound(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r, sink := newTestRegistry(store)
			a := createPending(t, r)

			if _, err := r.Get(ctx, "org_2", a.ID); !errors.Is(err, fault.ErrNotFound) {
				t.Fatalf("Get(other org) error = %v", err)
			}
			if _, err := r.Decide(ctx, "org_2", a.ID, "approve", "usr_2", ""); !errors.Is(err, fault.ErrNotFound) {
				t.Fatalf("Decide(other org) error = %v", err)
			}
			if _, err := r.Decide(ctx, "org_1", a.ID, "request_revision", "usr_1", ""); err != nil {
				t.Fatalf("Decide() error = %v", err)
			}
			if _, err := r.Revise(ctx, "org_2", a.ID, "rewritten", "usr_2"); !errors.Is(err, fault.ErrNotFound) {
				t.Fatalf("Revise(other org) error = %v", err)
			}
			if sink.Len() != 1 {
				t.Fatalf("expected only the org_1 decision entry, got %d", sink.Len())
			}
		})
	}
}

func TestRegistry_ConcurrentDecideOneWinner(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r, sink := newTestRegistry(store)
			a := createPending(t, r)

			const n = 16
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				wins      int
				conflicts int
			)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					decision := []string{"approve", "reject", "request_revision"}[i%3]
					_, err := r.Decide(ctx, "org_1", a.ID, decision, fmt.Sprintf("usr_%d", i), "")
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						wins++
					case errors.Is(err, fault.ErrInvalidTransition):
						conflicts++
					default:
						t.Errorf("Decide() unexpected error = %v", err)
					}
				}(i)
			}
			wg.Wait()
			if wins != 1 || conflicts != n-1 {
				t.Fatalf("wins=%d conflicts=%d", wins, conflicts)
			}
			if sink.Len() != 1 {
				t.Fatalf("expected exactly 1 audit entry, got %d", sink.Len())
			}
		})
	}
}

func TestRegistry_SharedStoreConditionalDecide(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "shared.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()

	// Two registries have separate lock maps; only the store's conditional
	// update keeps the decision single.
	r1, s1 := newTestRegistry(store)
	r2, s2 := newTestRegistry(store)
	a := createPending(t, r1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, r := range []*Registry{r1, r2} {
		wg.Add(1)
		go func(i int, r *Registry) {
			defer wg.Done()
			_, errs[i] = r.Decide(ctx, "org_1", a.ID, "approve", "usr_x", "")
		}(i, r)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, fault.ErrInvalidTransition) {
			t.Fatalf("unexpected error = %v", err)
		}
	}
	if ok != 1 || s1.Len()+s2.Len() != 1 {
		t.Fatalf("ok=%d audit=%d", ok, s1.Len()+s2.Len())
	}
}

func TestRegistry_DecideSinkUnavailableKeepsDecision(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	r := NewRegistry(store, brokenAuditor{}, WithLogger(quietLogger()))
	a := createPending(t, r)

	got, err := r.Decide(ctx, "org_1", a.ID, "approve", "usr_1", "")
	if !errors.Is(err, fault.ErrSinkUnavailable) {
		t.Fatalf("Decide() error = %v, want ErrSinkUnavailable", err)
	}
	if got.Status != StatusApproved {
		t.Fatalf("returned approval = %#v", got)
	}
	stored, _ := r.Get(ctx, "org_1", a.ID)
	if stored.Status != StatusApproved {
		t.Fatalf("stored status = %s", stored.Status)
	}
}

func TestRegistry_Revise(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
			r, sink := newTestRegistry(store)
			r.now = func() time.Time { now = now.Add(time.Second); return now }

			orig := createPending(t, r)
			if _, err := r.Revise(ctx, "org_1", orig.ID, "new", "usr_ai"); !errors.Is(err, fault.ErrInvalidTransition) {
				t.Fatalf("Revise() on pending error = %v", err)
			}
			if _, err := r.Decide(ctx, "org_1", orig.ID, "request_revision", "usr_r", "cite controls"); err != nil {
				t.Fatalf("Decide() error = %v", err)
			}

			next, err := r.Revise(ctx, "org_1", orig.ID, `{"gaps":["CC6.1","CC7.2"]}`, "usr_ai")
			if err != nil {
				t.Fatalf("Revise() error = %v", err)
			}
			if next.ID == orig.ID || next.Status != StatusPending || next.Supersedes != orig.ID || next.Type != orig.Type {
				t.Fatalf("unexpected revision: %#v", next)
			}
			if _, err := r.Revise(ctx, "org_1", orig.ID, "again", "usr_ai"); !errors.Is(err, fault.ErrInvalidTransition) {
				t.Fatalf("second Revise() error = %v", err)
			}

			stored, _ := r.Get(ctx, "org_1", orig.ID)
			if stored.Status != StatusRevisionRequested || stored.Content != orig.Content {
				t.Fatalf("original changed: %#v", stored)
			}
			pending, err := r.ListPending(ctx)
			if err != nil {
				t.Fatalf("ListPending() error = %v", err)
			}
			if len(pending) != 1 || pending[0].ID != next.ID {
				t.Fatalf("ListPending() = %#v", pending)
			}
			if sink.Len() != 1 {
				t.Fatalf("expected only the decision entry, got %d", sink.Len())
			}
		})
	}
}

func TestRegistry_ListFilters(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r, _ := newTestRegistry(store)
			base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
			i := 0
			r.now = func() time.Time { i++; return base.Add(time.Duration(i) * time.Minute) }

			for _, in := range []CreateInput{
				{OrgID: "org_a", Type: TypeGapAnalysis, Content: "1"},
				{OrgID: "org_a", Type: TypePolicyDraft, Content: "2"},
				{OrgID: "org_b", Type: TypePolicyDraft, Content: "3"},
			} {
				if _, err := r.Create(ctx, in); err != nil {
					t.Fatalf("Create() error = %v", err)
				}
			}
			got, err := r.List(ctx, Filter{OrgID: "org_a"})
			if err != nil || len(got) != 2 || got[0].Content != "1" || got[1].Content != "2" {
				t.Fatalf("List(org_a) = %#v, %v", got, err)
			}
			got, _ = r.List(ctx, Filter{Type: TypePolicyDraft, Limit: 1})
			if len(got) != 1 || got[0].Content != "2" {
				t.Fatalf("List(policy_draft, 1) = %#v", got)
			}
		})
	}
}

func TestParseDecision(t *testing.T) {
	for _, s := range []string{"approve", "reject", "request_revision"} {
		d, err := ParseDecision(s)
		if err != nil || string(d) != s {
			t.Fatalf("ParseDecision(%q) = %q, %v", s, d, err)
		}
	}
	for _, s := range []string{"", "APPROVE", "revise", "approve "} {
		if _, err := ParseDecision(s); !errors.Is(err, fault.ErrInvalidAction) {
			t.Fatalf("ParseDecision(%q) error = %v", s, err)
		}
	}
	if DecisionRequestRevision.Status() != StatusRevisionRequested || DecisionRequestRevision.AuditAction() != "ai.request_revision" {
		t.Fatal("request_revision mapping is wrong")
	}
}
