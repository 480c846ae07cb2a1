package persist

import (
	"context"
	"embed"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrations holds the goose migrations that create the snapshot table.
// Apply them with pkg/db.Migrate before using Postgres.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that holds the SQL files.
const MigrationsDir = "migrations"

// Postgres stores snapshots in the cache_snapshots table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres-backed Backend.
// The pool should be obtained from pkg/db.Connect.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Load reads the snapshot stored under key.
func (p *Postgres) Load(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := p.pool.QueryRow(ctx,
		`SELECT payload FROM cache_snapshots WHERE key = $1`, key,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Join(ErrBackend, err)
	}
	return payload, nil
}

// Save upserts data under key.
func (p *Postgres) Save(ctx context.Context, key string, data []byte) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO cache_snapshots (key, payload, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`,
		key, data,
	)
	if err != nil {
		return errors.Join(ErrBackend, err)
	}
	return nil
}

// Delete removes the row stored under key.
func (p *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM cache_snapshots WHERE key = $1`, key); err != nil {
		return errors.Join(ErrBackend, err)
	}
	return nil
}

var _ Backend = (*Postgres)(nil)
