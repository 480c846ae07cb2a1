//go:build integration

package persist_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/cachekit/pkg/db"
	"github.com/dmitrymomot/cachekit/pkg/logger"
	"github.com/dmitrymomot/cachekit/pkg/persist"
	"github.com/dmitrymomot/cachekit/pkg/redis"
)

// Integration tests run against the services from docker-compose.
// Each backend is skipped when its environment variable is unset.
const (
	testS3Endpoint  = "http://localhost:9000"
	testS3AccessKey = "admin"
	testS3SecretKey = "admin123"
	testS3Bucket    = "uploads"
)

func exerciseBackend(t *testing.T, b persist.Backend) {
	t.Helper()

	ctx := context.Background()
	key := persist.Key("test", uuid.NewString())
	t.Cleanup(func() { _ = b.Delete(context.Background(), key) })

	_, err := b.Load(ctx, key)
	require.ErrorIs(t, err, persist.ErrNotFound)

	require.NoError(t, b.Save(ctx, key, []byte(`{"version":"1"}`)))
	data, err := b.Load(ctx, key)
	require.NoError(t, err)
	require.JSONEq(t, `{"version":"1"}`, string(data))

	require.NoError(t, b.Save(ctx, key, []byte(`{"version":"2"}`)))
	data, err = b.Load(ctx, key)
	require.NoError(t, err)
	require.JSONEq(t, `{"version":"2"}`, string(data))

	require.NoError(t, b.Delete(ctx, key))
	_, err = b.Load(ctx, key)
	require.ErrorIs(t, err, persist.ErrNotFound)
}

func TestRedisIntegration(t *testing.T) {
	t.Parallel()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	ctx := context.Background()
	client, err := redis.Open(ctx, url, redis.WithRetry(1, 0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, redis.Healthcheck(client)(ctx))
	exerciseBackend(t, persist.NewRedis(client, time.Minute))
}

func TestPostgresIntegration(t *testing.T) {
	t.Parallel()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	cfg := db.DefaultConfig(url)
	cfg.RetryAttempts = 1

	pool, err := db.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.Migrate(ctx, pool, persist.Migrations, persist.MigrationsDir, cfg.MigrationsTable, logger.NewNope()))
	require.NoError(t, db.Healthcheck(pool)(ctx))
	exerciseBackend(t, persist.NewPostgres(pool))
}

func TestS3Integration(t *testing.T) {
	t.Parallel()

	if os.Getenv("S3_INTEGRATION") == "" {
		t.Skip("S3_INTEGRATION not set")
	}

	b, err := persist.NewS3(persist.S3Config{
		Bucket:    testS3Bucket,
		AccessKey: testS3AccessKey,
		SecretKey: testS3SecretKey,
		Endpoint:  testS3Endpoint,
		Prefix:    "snapshots/",
		PathStyle: true,
	})
	require.NoError(t, err)
	exerciseBackend(t, b)
}
