package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/quailyquaily/trustops/internal/pathutil"
)

type Config struct {
	Driver      string
	DSN         string
	AutoMigrate bool

	Pool   PoolConfig
	SQLite SQLiteConfig
}

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type SQLiteConfig struct {
	BusyTimeoutMs int
	WAL           bool
	ForeignKeys   bool
}

func DefaultConfig() Config {
	return Config{
		Driver:      "sqlite",
		AutoMigrate: true,
		Pool: PoolConfig{
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		SQLite: SQLiteConfig{
			BusyTimeoutMs: 5000,
			WAL:           true,
			ForeignKeys:   true,
		},
	}
}

// ResolveSQLiteDSN turns a config value into a usable sqlite DSN.
// Empty means ~/.trustops/trustops.db; "~/" is expanded; parent dirs are created.
func ResolveSQLiteDSN(dsn string) (string, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return dsn, nil
	}
	if dsn == "" {
		p, err := pathutil.StateFile("trustops.db")
		if err != nil {
			return "", fmt.Errorf("default sqlite path: %w", err)
		}
		dsn = p
	}
	dsn = pathutil.ExpandHomePath(dsn)
	if err := pathutil.EnsureParentDir(dsn); err != nil {
		return "", err
	}
	return dsn, nil
}
