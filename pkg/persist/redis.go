package persist

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores snapshots as plain Redis strings.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedis creates a Redis-backed Backend.
// The client should be obtained from pkg/redis.Open.
// A positive ttl makes Redis drop snapshots that are not rewritten in time;
// zero keeps them until deleted.
//
// Example:
//
//	client := redis.MustOpen(ctx, os.Getenv("REDIS_URL"))
//	backend := persist.NewRedis(client, 24*time.Hour)
func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: max(ttl, 0)}
}

// Load fetches the snapshot stored under key.
func (r *Redis) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, errors.Join(ErrBackend, err)
	}
	return data, nil
}

// Save writes data under key.
func (r *Redis) Save(ctx context.Context, key string, data []byte) error {
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return errors.Join(ErrBackend, err)
	}
	return nil
}

// Delete removes key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return errors.Join(ErrBackend, err)
	}
	return nil
}

var _ Backend = (*Redis)(nil)
