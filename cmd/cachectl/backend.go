package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/cachekit/pkg/db"
	"github.com/dmitrymomot/cachekit/pkg/health"
	"github.com/dmitrymomot/cachekit/pkg/persist"
	"github.com/dmitrymomot/cachekit/pkg/redis"
)

var errNoBackend = errors.New("one of --redis, --postgres or --s3-bucket is required")

// Backend flags shared by inspect and migrate.
var (
	redisURL    string
	postgresURL string
	s3Bucket    string
	s3Endpoint  string
	s3Prefix    string
)

func addBackendFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&redisURL, "redis", "", "Redis URL (redis:// or rediss://)")
	cmd.Flags().StringVar(&postgresURL, "postgres", "", "Postgres URL")
	cmd.Flags().StringVar(&s3Bucket, "s3-bucket", "", "S3 bucket; credentials come from AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY")
	cmd.Flags().StringVar(&s3Endpoint, "s3-endpoint", "", "custom S3 endpoint, e.g. MinIO")
	cmd.Flags().StringVar(&s3Prefix, "s3-prefix", "", "object key prefix")
	cmd.MarkFlagsMutuallyExclusive("redis", "postgres", "s3-bucket")
}

// connection is an open snapshot backend plus its health check.
type connection struct {
	backend persist.Backend
	check   health.CheckFunc
	close   func()
}

// openBackend connects to the backend selected by the flags. Callers must
// call close on the returned connection.
func openBackend(ctx context.Context) (*connection, error) {
	switch {
	case redisURL != "":
		client, err := redis.Open(ctx, redisURL,
			redis.WithRetry(1, 0),
			redis.WithPoolSize(2),
			redis.WithTimeouts(2*time.Second, 2*time.Second, 2*time.Second),
		)
		if err != nil {
			return nil, err
		}
		return &connection{
			backend: persist.NewRedis(client, 0),
			check:   redis.Healthcheck(client),
			close:   func() { _ = client.Close() },
		}, nil

	case postgresURL != "":
		cfg := db.DefaultConfig(postgresURL)
		cfg.RetryAttempts = 1
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &connection{
			backend: persist.NewPostgres(pool),
			check:   db.Healthcheck(pool),
			close:   pool.Close,
		}, nil

	case s3Bucket != "":
		backend, err := persist.NewS3(persist.S3Config{
			Bucket:    s3Bucket,
			AccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			Region:    os.Getenv("AWS_REGION"),
			Endpoint:  s3Endpoint,
			Prefix:    s3Prefix,
			PathStyle: s3Endpoint != "",
		})
		if err != nil {
			return nil, err
		}
		return &connection{
			backend: backend,
			check:   loadCheck(backend),
			close:   func() {},
		}, nil
	}
	return nil, errNoBackend
}

// loadCheck checks a backend by loading a key that is never written.
func loadCheck(b persist.Backend) health.CheckFunc {
	return func(ctx context.Context) error {
		_, err := b.Load(ctx, persist.Key("healthcheck"))
		if err == nil || errors.Is(err, persist.ErrNotFound) {
			return nil
		}
		return err
	}
}
