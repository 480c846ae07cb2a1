// Package db connects to PostgreSQL for the snapshot backend.
//
// It wraps [github.com/jackc/pgx/v5/pgxpool] with startup retries and a
// ping-based health check, and applies goose migrations through
// [github.com/pressly/goose/v3].
//
// # Configuration
//
// [Config] carries env tags; [DefaultConfig] fills in the defaults:
//
//	CACHE_DATABASE_URL                - PostgreSQL connection URL (required)
//	CACHE_DATABASE_MIGRATIONS_TABLE   - goose version table (default: cachekit_migrations)
//	CACHE_DATABASE_MAX_CONNS          - Maximum open connections (default: 4)
//	CACHE_DATABASE_MIN_CONNS          - Minimum idle connections (default: 1)
//	CACHE_DATABASE_RETRY_ATTEMPTS     - Connection retry attempts (default: 3)
//	CACHE_DATABASE_RETRY_INTERVAL     - Base retry interval (default: 5s)
//
// # Usage
//
//	cfg := db.DefaultConfig(os.Getenv("CACHE_DATABASE_URL"))
//	pool, err := db.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	err = db.Migrate(ctx, pool, persist.Migrations, persist.MigrationsDir, cfg.MigrationsTable, log)
//	if err != nil {
//		return err
//	}
//
//	backend := persist.NewPostgres(pool)
package db
