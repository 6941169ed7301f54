// Package db opens canopy's PostgreSQL pool and runs its migrations.
//
// Settings come from the database section of the config file and the
// DATABASE_* environment variables:
//
//	DATABASE_CONN_URL           connection URL
//	DATABASE_TABLE_PREFIX       prefix substituted for "table::" in tree queries
//	DATABASE_MAX_OPEN_CONNS     maximum open connections (10)
//	DATABASE_MIN_CONNS          minimum idle connections (2)
//	DATABASE_RETRY_ATTEMPTS     connection attempts at startup (3)
//	DATABASE_RETRY_INTERVAL     base retry interval (5s)
//	DATABASE_MIGRATIONS_TABLE   goose version table (schema_migrations)
//
// Usage:
//
//	pool, err := db.Connect(ctx, cfg.Database)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if _, err := db.Migrate(ctx, pool, migrations.FS, cfg.Database.MigrationsTable, log); err != nil {
//		return err
//	}
//
// Tree maintenance must run inside WithTx so the boundary shift and the
// row change commit or roll back together:
//
//	err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
//		_, err := acc.InsertChild(ctx, tx, "users", parentID, where, insert)
//		return err
//	})
package db
