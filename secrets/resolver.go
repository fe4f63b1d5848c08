package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/quailyquaily/trustops/fault"
)

// KeyResolver turns an encryption.key_ref value into key text.
type KeyResolver interface {
	Lookup(ctx context.Context, ref string) (string, error)
}

// EnvResolver reads key references from the process environment. A ref is an
// env var name, or an alias from Aliases naming one.
//
// An unset or blank variable is ErrKeyMissing rather than an empty key, so a
// broken reference can never fall back to plaintext mode.
type EnvResolver struct {
	Aliases map[string]string
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

func (r *EnvResolver) Lookup(ctx context.Context, ref string) (string, error) {
	if ctx != nil && ctx.Err() != nil {
		return "", ctx.Err()
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty key reference")
	}
	name, lookup := r.target(ref)
	val, ok := lookup(name)
	if !ok {
		return "", fmt.Errorf("key reference %q: env var %s is not set: %w", ref, name, fault.ErrKeyMissing)
	}
	if val = strings.TrimSpace(val); val == "" {
		return "", fmt.Errorf("key reference %q: env var %s is blank: %w", ref, name, fault.ErrKeyMissing)
	}
	return val, nil
}

func (r *EnvResolver) target(ref string) (string, func(string) (string, bool)) {
	if r == nil {
		return ref, os.LookupEnv
	}
	name := ref
	if alias := strings.TrimSpace(r.Aliases[ref]); alias != "" {
		name = alias
	}
	if r.LookupEnv != nil {
		return name, r.LookupEnv
	}
	return name, os.LookupEnv
}
