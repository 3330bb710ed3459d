package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/entitlekit/pkg/audit"
	"github.com/dmitrymomot/entitlekit/pkg/config"
	"github.com/dmitrymomot/entitlekit/pkg/edition"
	"github.com/dmitrymomot/entitlekit/pkg/httpserver"
	"github.com/dmitrymomot/entitlekit/pkg/logger"
	"github.com/dmitrymomot/entitlekit/pkg/mongo"
	"github.com/dmitrymomot/entitlekit/pkg/pg"
	"github.com/dmitrymomot/entitlekit/pkg/store/memstore"
	"github.com/dmitrymomot/entitlekit/pkg/store/mongostore"
	"github.com/dmitrymomot/entitlekit/pkg/store/pgstore"
	"github.com/dmitrymomot/entitlekit/pkg/tenant"
)

// stores bundles the repositories the engine runs on, plus their probes and
// shutdown hooks.
type stores struct {
	tenants   tenant.Repository
	overrides tenant.OverrideRepository
	editions  edition.Repository
	audit     audit.BatchStorage

	checks  []httpserver.Check
	closers []func(context.Context)
}

func (s *stores) close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i](ctx)
	}
}

func openStores(ctx context.Context, app appConfig, log *slog.Logger) (*stores, error) {
	s := &stores{}

	var pool *pgxpool.Pool
	switch app.StoreDriver {
	case driverPostgres:
		var cfg pg.Config
		if err := config.Load(&cfg); err != nil {
			return nil, fmt.Errorf("load postgres config: %w", err)
		}
		p, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		pool = p
		s.closers = append(s.closers, func(context.Context) { p.Close() })
		s.checks = append(s.checks, httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(p)})

		if cfg.AutoMigrate {
			if err := pg.Migrate(ctx, p, pgstore.Migrations, pgstore.MigrationsDir, cfg, log); err != nil {
				s.close(ctx)
				return nil, err
			}
		}

		s.tenants = pgstore.NewTenants(p)
		s.overrides = pgstore.NewOverrides(p)
		s.editions = pgstore.NewEditions(p)
	default:
		log.Warn("using in-memory stores, data is lost on restart")
		s.tenants = memstore.NewTenants()
		s.overrides = memstore.NewOverrides()
		s.editions = memstore.NewEditions()
	}

	switch app.auditDriver() {
	case driverPostgres:
		s.audit = pgstore.NewAuditStorage(pool)
	case driverMongo:
		var cfg mongo.Config
		if err := config.Load(&cfg); err != nil {
			s.close(ctx)
			return nil, fmt.Errorf("load mongo config: %w", err)
		}
		db, err := mongo.NewWithDatabase(ctx, cfg)
		if err != nil {
			s.close(ctx)
			return nil, err
		}
		s.closers = append(s.closers, func(ctx context.Context) {
			if err := db.Client().Disconnect(ctx); err != nil {
				log.Error("failed to disconnect mongo", logger.Error(err))
			}
		})
		s.checks = append(s.checks, httpserver.Check{Name: "mongo", Fn: mongo.Healthcheck(db.Client())})

		storage, err := mongostore.NewAuditStorage(ctx, db)
		if err != nil {
			s.close(ctx)
			return nil, err
		}
		s.audit = storage
	default:
		s.audit = audit.NewMemoryStorage()
	}

	return s, nil
}
