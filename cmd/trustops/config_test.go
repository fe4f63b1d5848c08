package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/quailyquaily/trustops/fault"
	"github.com/spf13/viper"
)

func TestDBConfigFromViper_ZeroValuesFallBack(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("db.pool.max_open_conns", 0)
	v.Set("db.sqlite.busy_timeout_ms", -1)
	v.Set("db.pool.conn_max_lifetime", "-5s")

	cfg := dbConfigFromViper(v)
	if cfg.Driver != "sqlite" || !cfg.AutoMigrate {
		t.Fatalf("unexpected cfg: %#v", cfg)
	}
	if cfg.Pool.MaxOpenConns != 1 || cfg.SQLite.BusyTimeoutMs != 5000 || cfg.Pool.ConnMaxLifetime != 0 {
		t.Fatalf("defaults not applied: %#v", cfg)
	}
}

func TestSecretsConfigFromEnv(t *testing.T) {
	t.Setenv("TRUSTOPS_ENCRYPTION_KEY_REF", "VAULT_KEY")
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("TRUSTOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := secretsConfigFromViper(v)
	if cfg.KeyRef != "VAULT_KEY" || cfg.Key != "" || cfg.RequireKey {
		t.Fatalf("cfg = %#v", cfg)
	}
}

func TestAuditConfigFromViper(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("audit.sink", " JSONL ")
	v.Set("audit.jsonl_path", "/var/lib/trustops/audit.jsonl")
	cfg := auditConfigFromViper(v)
	if cfg.Sink != "jsonl" || cfg.JSONLPath != "/var/lib/trustops/audit.jsonl" || cfg.RotateMaxBytes != 64<<20 {
		t.Fatalf("cfg = %#v", cfg)
	}
	if _, err := auditSink(auditConfig{Sink: "kafka"}, nil); err == nil {
		t.Fatal("unknown sink should fail")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := newLogger(&buf, "warn", "json")
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	log.Info("hidden")
	log.Warn("secrets_degraded_mode", "mode", "plaintext")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"msg":"secrets_degraded_mode"`) {
		t.Fatalf("log output = %q", buf.String())
	}
	if _, err := newLogger(&buf, "loud", "text"); err == nil {
		t.Fatal("unknown level should fail")
	}
	if _, err := newLogger(&buf, "info", "xml"); err == nil {
		t.Fatal("unknown format should fail")
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{fault.ErrNotFound, 2},
		{fault.ErrInvalidAction, 2},
		{errors.New("disk"), 1},
		{fault.ErrSinkUnavailable, 1},
		{&partialError{err: fault.ErrSinkUnavailable}, 3},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Fatalf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
