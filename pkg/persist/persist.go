package persist

import (
	"context"
	"strings"
)

// Backend is a durable key-value store for cache snapshots.
//
// Implementations must be safe for concurrent use. Load returns ErrNotFound
// when nothing is stored under key.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// KeyPrefix namespaces every key produced by Key.
const KeyPrefix = "cachekit"

// Key joins parts into a backend key: "cachekit:part1:part2:...".
func Key(parts ...string) string {
	return KeyPrefix + ":" + strings.Join(parts, ":")
}
