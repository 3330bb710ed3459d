// Package pg bootstraps the PostgreSQL side of entitlekit on top of pgx/v5.
//
// Connect opens a *pgxpool.Pool from Config (populated from PG_* environment
// variables) and retries until the database answers a ping or the context is
// done. Migrate runs goose migrations from an fs.FS, typically the embedded
// migrations of pkg/store/pgstore:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, log); err != nil {
//		return err
//	}
//
// Healthcheck adapts the pool to the probe signature used by httpserver, and
// the Is*Error helpers classify pgx errors so that stores can map them to
// domain sentinels.
package pg
