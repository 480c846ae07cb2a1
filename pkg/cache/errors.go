package cache

import "errors"

// Sentinel errors for cache operations.
var (
	// ErrNotFound is returned when a key does not exist in the cache or has expired.
	ErrNotFound = errors.New("cache: entry not found")

	// ErrClosed is returned when an operation is attempted on a closed cache.
	ErrClosed = errors.New("cache: closed")

	// ErrCapacity is returned when a single value is larger than the store's byte budget.
	ErrCapacity = errors.New("cache: value exceeds capacity")

	// ErrMarshal is returned when value serialization fails.
	ErrMarshal = errors.New("cache: failed to marshal value")

	// ErrUnmarshal is returned when value deserialization fails.
	ErrUnmarshal = errors.New("cache: failed to unmarshal value")

	// ErrUnknownPolicy is returned when an eviction policy name is not recognized.
	ErrUnknownPolicy = errors.New("cache: unknown eviction policy")

	// ErrSnapshotCorrupt is returned when a persisted snapshot cannot be decoded.
	ErrSnapshotCorrupt = errors.New("cache: snapshot is corrupt")

	// ErrNoBackend is returned by Flush when the store has no persistence backend.
	ErrNoBackend = errors.New("cache: persistence is not configured")
)
