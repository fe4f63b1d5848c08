package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Config is the encryption.* section of the trustops config.
type Config struct {
	// Key is the literal key (hex or base64). Prefer KeyRef outside local setups.
	Key string `mapstructure:"key"`
	// KeyRef names the environment variable holding the key.
	KeyRef     string `mapstructure:"key_ref"`
	RequireKey bool   `mapstructure:"require_key"`
}

// ResolveKey returns the configured key text, or "" when none is configured.
// A KeyRef that cannot be resolved is an error: the operator asked for a key.
func (c Config) ResolveKey(ctx context.Context, r KeyResolver) (string, error) {
	if k := strings.TrimSpace(c.Key); k != "" {
		return k, nil
	}
	ref := strings.TrimSpace(c.KeyRef)
	if ref == "" {
		return "", nil
	}
	if r == nil {
		r = &EnvResolver{}
	}
	v, err := r.Lookup(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("encryption.key_ref: %w", err)
	}
	return v, nil
}

func NewCodecFromConfig(ctx context.Context, cfg Config, r KeyResolver, log *slog.Logger) (*Codec, error) {
	key, err := cfg.ResolveKey(ctx, r)
	if err != nil {
		return nil, err
	}
	return NewCodec(key, Options{Logger: log, RequireKey: cfg.RequireKey})
}
