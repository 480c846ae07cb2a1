// Package persist provides durable backends for cache snapshots.
//
// A [Backend] is a plain key-value capability: Load, Save and Delete of
// byte payloads. Stores receive it through injection and never look for a
// backend on their own.
//
// Implementations:
//
//   - [Memory]: process-local, for tests and sandboxed environments
//   - [Redis]: one Redis string per snapshot, via go-redis
//   - [S3]: one object per snapshot, for S3-compatible storage
//   - [Postgres]: one row per snapshot in the cache_snapshots table
//
// Every implementation returns [ErrNotFound] for a missing key and wraps
// service failures in [ErrBackend]:
//
//	data, err := backend.Load(ctx, persist.Key("snapshot", "users", "v2"))
//	if errors.Is(err, persist.ErrNotFound) {
//	    // cold start
//	}
//
// The Postgres table is created by the goose migrations in [Migrations]:
//
//	pool, err := db.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	if err := db.Migrate(ctx, pool, persist.Migrations, persist.MigrationsDir, "cachekit_migrations", log); err != nil {
//	    return err
//	}
//	backend := persist.NewPostgres(pool)
package persist
