// Package pgstore implements the tenant, override, edition and audit storage
// ports on PostgreSQL with pgx/v5.
//
// The schema ships as embedded goose migrations; apply them with
// pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, log).
// Every store accepts a DB, which both *pgxpool.Pool and pgx.Tx satisfy.
package pgstore
