package main

import (
	"strings"
	"time"

	"github.com/quailyquaily/trustops/db"
	"github.com/quailyquaily/trustops/integrations"
	"github.com/quailyquaily/trustops/internal/pathutil"
	"github.com/quailyquaily/trustops/secrets"
	"github.com/spf13/viper"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("org", "")
	v.SetDefault("actor", "")

	v.SetDefault("encryption.key", "")
	v.SetDefault("encryption.key_ref", "")
	v.SetDefault("encryption.require_key", false)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.automigrate", true)
	v.SetDefault("db.pool.max_open_conns", 1)
	v.SetDefault("db.pool.max_idle_conns", 1)
	v.SetDefault("db.pool.conn_max_lifetime", time.Duration(0))
	v.SetDefault("db.sqlite.busy_timeout_ms", 5000)
	v.SetDefault("db.sqlite.wal", true)
	v.SetDefault("db.sqlite.foreign_keys", true)

	v.SetDefault("audit.sink", "db")
	v.SetDefault("audit.jsonl_path", "")
	v.SetDefault("audit.rotate_max_bytes", int64(64<<20))

	v.SetDefault("approvals.dsn", "~/.trustops/approvals.db")

	v.SetDefault("integrations.sync_timeout", integrations.DefaultSyncTimeout)
}

func secretsConfigFromViper(v *viper.Viper) secrets.Config {
	return secrets.Config{
		Key:        strings.TrimSpace(v.GetString("encryption.key")),
		KeyRef:     strings.TrimSpace(v.GetString("encryption.key_ref")),
		RequireKey: v.GetBool("encryption.require_key"),
	}
}

func dbConfigFromViper(v *viper.Viper) db.Config {
	cfg := db.DefaultConfig()

	cfg.Driver = v.GetString("db.driver")
	cfg.DSN = v.GetString("db.dsn")
	cfg.AutoMigrate = v.GetBool("db.automigrate")

	cfg.Pool.MaxOpenConns = v.GetInt("db.pool.max_open_conns")
	cfg.Pool.MaxIdleConns = v.GetInt("db.pool.max_idle_conns")
	cfg.Pool.ConnMaxLifetime = v.GetDuration("db.pool.conn_max_lifetime")
	if cfg.Pool.ConnMaxLifetime < 0 {
		cfg.Pool.ConnMaxLifetime = 0
	}

	cfg.SQLite.BusyTimeoutMs = v.GetInt("db.sqlite.busy_timeout_ms")
	cfg.SQLite.WAL = v.GetBool("db.sqlite.wal")
	cfg.SQLite.ForeignKeys = v.GetBool("db.sqlite.foreign_keys")

	if cfg.Pool.MaxOpenConns <= 0 {
		cfg.Pool.MaxOpenConns = 1
	}
	if cfg.Pool.MaxIdleConns <= 0 {
		cfg.Pool.MaxIdleConns = 1
	}
	if cfg.SQLite.BusyTimeoutMs <= 0 {
		cfg.SQLite.BusyTimeoutMs = 5000
	}
	return cfg
}

type auditConfig struct {
	Sink           string
	JSONLPath      string
	RotateMaxBytes int64
}

func auditConfigFromViper(v *viper.Viper) auditConfig {
	cfg := auditConfig{
		Sink:           strings.ToLower(strings.TrimSpace(v.GetString("audit.sink"))),
		JSONLPath:      strings.TrimSpace(v.GetString("audit.jsonl_path")),
		RotateMaxBytes: v.GetInt64("audit.rotate_max_bytes"),
	}
	if cfg.Sink == "" {
		cfg.Sink = "db"
	}
	if cfg.JSONLPath == "" {
		if p, err := pathutil.StateFile("audit.jsonl"); err == nil {
			cfg.JSONLPath = p
		}
	}
	cfg.JSONLPath = pathutil.ExpandHomePath(cfg.JSONLPath)
	return cfg
}
