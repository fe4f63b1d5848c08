package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen_SQLiteAutoMigrates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DSN = filepath.Join(t.TempDir(), "nested", "trustops.db")

	gdb, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer Close(gdb)

	for _, table := range []string{"audit_entries", "evidence_items", "integrations"} {
		if !gdb.Migrator().HasTable(table) {
			t.Fatalf("expected table %s after automigrate", table)
		}
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"})
	if err == nil || !strings.Contains(err.Error(), "unsupported db.driver") {
		t.Fatalf("Open() err = %v, want unsupported driver", err)
	}
}

func TestOpen_PostgresRequiresDSN(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "postgres"}); err == nil {
		t.Fatal("expected error for postgres without dsn")
	}
}

func TestSQLitePragmas(t *testing.T) {
	got := sqlitePragmas(SQLiteConfig{WAL: true, BusyTimeoutMs: 250})
	want := []string{"PRAGMA journal_mode=WAL;", "PRAGMA busy_timeout=250;"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("sqlitePragmas() = %v, want %v", got, want)
	}
}

func TestResolveSQLiteDSN(t *testing.T) {
	for _, in := range []string{":memory:", "file:test.db?cache=shared"} {
		got, err := ResolveSQLiteDSN(in)
		if err != nil || got != in {
			t.Fatalf("ResolveSQLiteDSN(%q) = %q, %v", in, got, err)
		}
	}
	p := filepath.Join(t.TempDir(), "a", "b.db")
	got, err := ResolveSQLiteDSN(p)
	if err != nil || got != p {
		t.Fatalf("ResolveSQLiteDSN(%q) = %q, %v", p, got, err)
	}
}
