package pathutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandHomePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cases := map[string]string{
		"":               "",
		"~":              home,
		"~/a/b.db":       filepath.Join(home, "a", "b.db"),
		"/var/x/../y":    "/var/y",
		"  rel/path.db ": "rel/path.db",
	}
	for in, want := range cases {
		if got := ExpandHomePath(in); got != want {
			t.Fatalf("ExpandHomePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStateFileAndEnsureParentDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	p, err := StateFile("audit.jsonl")
	if err != nil {
		t.Fatalf("StateFile() error = %v", err)
	}
	if p != filepath.Join(home, StateDirName, "audit.jsonl") {
		t.Fatalf("StateFile() = %q", p)
	}
	if err := EnsureParentDir(p); err != nil {
		t.Fatalf("EnsureParentDir() error = %v", err)
	}
	st, err := os.Stat(filepath.Dir(p))
	if err != nil || !st.IsDir() {
		t.Fatalf("state dir not created: %v", err)
	}
	if err := EnsureParentDir("bare.db"); err != nil {
		t.Fatalf("EnsureParentDir(bare) error = %v", err)
	}
}
