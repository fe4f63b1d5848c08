package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quailyquaily/trustops/approvals"
	"github.com/quailyquaily/trustops/audit"
	"github.com/quailyquaily/trustops/db"
	"github.com/quailyquaily/trustops/evidence"
	"github.com/quailyquaily/trustops/integrations"
	"github.com/quailyquaily/trustops/secrets"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

// app is the fully wired core for commands that touch persistent state.
type app struct {
	log *slog.Logger

	gdb           *gorm.DB
	trail         *audit.Trail
	approvalStore *approvals.SQLiteStore

	approvals    *approvals.Registry
	evidence     *evidence.Gate
	integrations *integrations.Manager
}

func openApp(ctx context.Context, v *viper.Viper, codec *secrets.Codec, log *slog.Logger) (*app, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &app{log: log}

	gdb, err := db.Open(ctx, dbConfigFromViper(v))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.gdb = gdb

	sink, err := auditSink(auditConfigFromViper(v), gdb)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.trail = audit.NewTrail(sink, audit.WithLogger(log))

	dsn, err := db.ResolveSQLiteDSN(v.GetString("approvals.dsn"))
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("approvals.dsn: %w", err)
	}
	st, err := approvals.NewSQLiteStore(dsn)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open approvals store: %w", err)
	}
	a.approvalStore = st

	a.approvals = approvals.NewRegistry(st, a.trail, approvals.WithLogger(log))
	a.evidence = evidence.NewGate(evidence.NewGormStore(gdb), a.trail, evidence.WithLogger(log))
	a.integrations = integrations.NewManager(
		integrations.NewGormStore(gdb), codec, a.trail,
		integrations.WithEvidenceSink(a.evidence),
		integrations.WithSyncTimeout(v.GetDuration("integrations.sync_timeout")),
		integrations.WithLogger(log),
	)
	return a, nil
}

func auditSink(cfg auditConfig, gdb *gorm.DB) (audit.Sink, error) {
	switch cfg.Sink {
	case "db":
		return audit.NewGormSink(gdb), nil
	case "jsonl":
		s, err := audit.NewJSONLSink(cfg.JSONLPath, cfg.RotateMaxBytes)
		if err != nil {
			return nil, fmt.Errorf("open audit jsonl %s: %w", cfg.JSONLPath, err)
		}
		return s, nil
	case "memory":
		return audit.NewMemorySink(), nil
	}
	return nil, fmt.Errorf("unknown audit.sink %q (want db, jsonl or memory)", cfg.Sink)
}

func (a *app) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.trail != nil {
		errs = append(errs, a.trail.Close())
	}
	if a.approvalStore != nil {
		errs = append(errs, a.approvalStore.Close())
	}
	if a.gdb != nil {
		errs = append(errs, db.Close(a.gdb))
	}
	return errors.Join(errs...)
}

// withApp opens the core for the duration of fn.
func (c *cli) withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := openApp(ctx, c.v, c.codec, c.log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			c.log.Warn("app_close_error", "error", cerr.Error())
		}
	}()
	return fn(a)
}
