package secrets

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/quailyquaily/trustops/fault"
)

func TestParseKey(t *testing.T) {
	raw := bytes.Repeat([]byte{0xab}, KeySize)
	valid := map[string]string{
		"hex":        FormatKey(raw),
		"hex_upper":  strings.ToUpper(FormatKey(raw)),
		"base64":     base64.StdEncoding.EncodeToString(raw),
		"base64_raw": base64.RawStdEncoding.EncodeToString(raw),
		"base64_url": base64.URLEncoding.EncodeToString(raw),
		"padded_ws":  "  " + FormatKey(raw) + "\n",
	}
	for name, in := range valid {
		t.Run(name, func(t *testing.T) {
			got, err := ParseKey(in)
			if err != nil {
				t.Fatalf("ParseKey() error = %v", err)
			}
			if !bytes.Equal(got, raw) {
				t.Fatalf("ParseKey() = %x, want %x", got, raw)
			}
		})
	}

	invalid := []string{
		"abcd",
		FormatKey(raw)[:62],
		strings.Repeat("z", 64),
		base64.StdEncoding.EncodeToString(raw[:16]),
	}
	for _, in := range invalid {
		if _, err := ParseKey(in); !errors.Is(err, fault.ErrInvalidKeyFormat) {
			t.Fatalf("ParseKey(%q) err = %v, want ErrInvalidKeyFormat", in, err)
		}
	}
	if _, err := NewCodec("not-a-key", Options{Logger: quietLogger()}); !errors.Is(err, fault.ErrInvalidKeyFormat) {
		t.Fatalf("NewCodec(bad key) err = %v, want ErrInvalidKeyFormat", err)
	}

	if k, err := ParseKey(""); k != nil || err != nil {
		t.Fatalf("ParseKey(\"\") = %v, %v, want nil, nil", k, err)
	}
}

func TestConfigResolveKey(t *testing.T) {
	env := map[string]string{"TRUSTOPS_KEY": "  k1  ", "BLANK": " "}
	r := &EnvResolver{
		Aliases:   map[string]string{"primary": "TRUSTOPS_KEY"},
		LookupEnv: func(name string) (string, bool) { v, ok := env[name]; return v, ok },
	}
	ctx := context.Background()

	if got, err := (Config{Key: "literal", KeyRef: "primary"}).ResolveKey(ctx, r); err != nil || got != "literal" {
		t.Fatalf("literal key should win: %q, %v", got, err)
	}
	if got, err := (Config{KeyRef: "primary"}).ResolveKey(ctx, r); err != nil || got != "k1" {
		t.Fatalf("alias resolution = %q, %v", got, err)
	}
	if got, err := (Config{}).ResolveKey(ctx, r); err != nil || got != "" {
		t.Fatalf("empty config = %q, %v", got, err)
	}
	for _, ref := range []string{"MISSING", "BLANK"} {
		if _, err := (Config{KeyRef: ref}).ResolveKey(ctx, r); !errors.Is(err, fault.ErrKeyMissing) {
			t.Fatalf("key_ref %q: err = %v, want ErrKeyMissing", ref, err)
		}
	}
}

func TestEnvResolver_Lookup(t *testing.T) {
	env := map[string]string{"TRUSTOPS_KEY": "k1"}
	r := &EnvResolver{LookupEnv: func(name string) (string, bool) { v, ok := env[name]; return v, ok }}

	if got, err := r.Lookup(context.Background(), " TRUSTOPS_KEY "); err != nil || got != "k1" {
		t.Fatalf("Lookup() = %q, %v", got, err)
	}
	if _, err := r.Lookup(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty reference")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Lookup(ctx, "TRUSTOPS_KEY"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Lookup(canceled) err = %v", err)
	}

	var nilResolver *EnvResolver
	t.Setenv("TRUSTOPS_TEST_KEY_REF", "from-env")
	if got, err := nilResolver.Lookup(context.Background(), "TRUSTOPS_TEST_KEY_REF"); err != nil || got != "from-env" {
		t.Fatalf("nil resolver Lookup() = %q, %v", got, err)
	}
}
