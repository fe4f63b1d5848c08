package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/quailyquaily/trustops/db"
	"github.com/quailyquaily/trustops/fault"
)

type failingSink struct{ MemorySink }

func (f *failingSink) Write(ctx context.Context, e *Entry) error {
	return errors.New("disk full")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedClock returns the same instant for every call so ordering falls back to Seq.
func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func sinks(t *testing.T) map[string]Sink {
	t.Helper()
	jsonl, err := NewJSONLSink(filepath.Join(t.TempDir(), "audit", "trail.jsonl"), 0)
	if err != nil {
		t.Fatalf("NewJSONLSink() error = %v", err)
	}
	cfg := db.DefaultConfig()
	cfg.DSN = filepath.Join(t.TempDir(), "audit.db")
	gdb, err := db.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = jsonl.Close()
		_ = db.Close(gdb)
	})
	return map[string]Sink{
		"memory": NewMemorySink(),
		"jsonl":  jsonl,
		"gorm":   NewGormSink(gdb),
	}
}

func TestTrail_AppendRedactsAndLists(t *testing.T) {
	for name, sink := range sinks(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tr := NewTrail(sink, WithLogger(quietLogger()), WithClock(fixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))))

			id, err := tr.Append(ctx, Entry{
				OrgID:      "org_1",
				ActorID:    "u1",
				Action:     "integration.connected",
				TargetType: "integration",
				TargetID:   "int_1",
				Metadata:   map[string]any{"accessToken": "ghp_xxx", "repo": "trustops"},
			})
			if err != nil {
				t.Fatalf("Append() error = %v", err)
			}
			if id == "" {
				t.Fatal("Append() returned empty id")
			}

			got, err := tr.List(ctx, "org_1", 10)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("List() returned %d entries, want 1", len(got))
			}
			e := got[0]
			if e.ID != id || e.Action != "integration.connected" || e.TargetID != "int_1" || e.ActorID != "u1" {
				t.Fatalf("unexpected entry: %+v", e)
			}
			if e.Metadata["accessToken"] != RedactedMarker {
				t.Fatalf("accessToken = %v, want %s", e.Metadata["accessToken"], RedactedMarker)
			}
			if e.Metadata["repo"] != "trustops" {
				t.Fatalf("repo = %v, want trustops", e.Metadata["repo"])
			}
			if e.Seq == 0 {
				t.Fatalf("expected sink-assigned seq")
			}
		})
	}
}

func TestTrail_ListNewestFirstWithLimit(t *testing.T) {
	for name, sink := range sinks(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
			now := base
			tr := NewTrail(sink, WithLogger(quietLogger()), WithClock(func() time.Time { return now }))

			// Two entries share a timestamp; the later insert must sort first.
			targets := []struct {
				id string
				at time.Time
			}{
				{"ev_1", base},
				{"ev_2", base.Add(time.Second)},
				{"ev_3", base.Add(time.Second)},
				{"ev_4", base.Add(2 * time.Second)},
			}
			for _, tg := range targets {
				now = tg.at
				if _, err := tr.Append(ctx, Entry{OrgID: "org_1", ActorID: "u1", Action: "evidence.approved", TargetType: "evidence", TargetID: tg.id}); err != nil {
					t.Fatalf("Append(%s) error = %v", tg.id, err)
				}
			}
			if _, err := tr.Append(ctx, Entry{OrgID: "org_2", ActorID: "u9", Action: "evidence.approved", TargetType: "evidence", TargetID: "other"}); err != nil {
				t.Fatalf("Append(org_2) error = %v", err)
			}

			got, err := tr.List(ctx, "org_1", 3)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			want := []string{"ev_4", "ev_3", "ev_2"}
			if len(got) != len(want) {
				t.Fatalf("List() returned %d entries, want %d", len(got), len(want))
			}
			for i, w := range want {
				if got[i].TargetID != w {
					t.Fatalf("List()[%d].TargetID = %s, want %s", i, got[i].TargetID, w)
				}
			}

			hist, err := tr.ListTarget(ctx, "org_1", "evidence", "ev_1", 0)
			if err != nil {
				t.Fatalf("ListTarget() error = %v", err)
			}
			if len(hist) != 1 || hist[0].TargetID != "ev_1" {
				t.Fatalf("ListTarget() = %+v", hist)
			}
		})
	}
}

func TestTrail_SinkUnavailable(t *testing.T) {
	tr := NewTrail(&failingSink{}, WithLogger(quietLogger()))
	_, err := tr.Append(context.Background(), Entry{OrgID: "o", ActorID: "a", Action: "ai.approve", TargetType: "approval", TargetID: "x"})
	if !errors.Is(err, fault.ErrSinkUnavailable) {
		t.Fatalf("err = %v, want ErrSinkUnavailable", err)
	}

	var nilTrail *Trail
	if _, err := nilTrail.Append(context.Background(), Entry{Action: "ai.approve"}); !errors.Is(err, fault.ErrSinkUnavailable) {
		t.Fatalf("nil trail err = %v, want ErrSinkUnavailable", err)
	}

	closed := NewMemorySink()
	_ = closed.Close()
	if _, err := NewTrail(closed, WithLogger(quietLogger())).Append(context.Background(), Entry{Action: "ai.approve"}); !errors.Is(err, fault.ErrSinkUnavailable) {
		t.Fatalf("closed sink err = %v, want ErrSinkUnavailable", err)
	}
}

func TestTrail_RejectsMalformedAction(t *testing.T) {
	sink := NewMemorySink()
	tr := NewTrail(sink, WithLogger(quietLogger()))
	for _, a := range []string{"", "approved", ".approved", "evidence."} {
		if _, err := tr.Append(context.Background(), Entry{OrgID: "o", Action: a}); err == nil {
			t.Fatalf("expected error for action %q", a)
		}
	}
	if sink.Len() != 0 {
		t.Fatalf("malformed actions were persisted: %d", sink.Len())
	}
}

func TestTrail_EntriesAreImmutableCopies(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink()
	tr := NewTrail(sink, WithLogger(quietLogger()))
	meta := map[string]any{"reason": "blurry"}
	if _, err := tr.Append(ctx, Entry{OrgID: "o", ActorID: "a", Action: "evidence.rejected", TargetType: "evidence", TargetID: "e", Metadata: meta}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	meta["reason"] = "changed after append"

	first, _ := tr.List(ctx, "o", 1)
	first[0].Metadata["reason"] = "changed after list"

	second, _ := tr.List(ctx, "o", 1)
	if second[0].Metadata["reason"] != "blurry" {
		t.Fatalf("stored entry was mutated: %v", second[0].Metadata["reason"])
	}
}
