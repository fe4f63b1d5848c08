package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a gorm handle for the configured driver. Production deployments
// point driver=postgres at a real database; everything else uses sqlite.
func Open(ctx context.Context, cfg Config) (*gorm.DB, error) {
	if strings.TrimSpace(cfg.Driver) == "" {
		cfg.Driver = "sqlite"
	}
	gcfg := &gorm.Config{Logger: logger.Discard}

	var (
		gdb *gorm.DB
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "sqlite":
		dsn, rerr := ResolveSQLiteDSN(cfg.DSN)
		if rerr != nil {
			return nil, rerr
		}
		gdb, err = gorm.Open(sqlite.Open(dsn), gcfg)
		if err != nil {
			return nil, err
		}
		if err := applySQLitePragmas(gdb, cfg.SQLite); err != nil {
			return nil, err
		}
	case "postgres", "postgresql":
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, fmt.Errorf("db.dsn is required for driver postgres")
		}
		gdb, err = gorm.Open(postgres.Open(cfg.DSN), gcfg)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported db.driver: %s (want sqlite or postgres)", cfg.Driver)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	applyPool(sqlDB, cfg.Pool)
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := AutoMigrate(gdb); err != nil {
			return nil, fmt.Errorf("automigrate: %w", err)
		}
	}
	return gdb, nil
}

func applyPool(sqlDB *sql.DB, cfg PoolConfig) {
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}

func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
