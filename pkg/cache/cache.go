package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Cache is the caller-facing contract of a named, bounded key-value store.
//
// TTL semantics for Set:
//   - Positive duration: item expires after this duration
//   - Zero: use the store's configured default TTL
//   - Negative: item never expires
type Cache[V any] interface {
	// Get retrieves a value by key.
	// Returns ErrNotFound if the key does not exist or has expired.
	Get(ctx context.Context, key string) (V, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value V, ttl time.Duration) error

	// Delete removes a key and reports whether it was present.
	Delete(key string) bool

	// Has checks whether a key exists and has not expired.
	Has(key string) bool

	// Keys returns the live keys in insertion order.
	Keys() []string

	// Clear removes all entries and returns how many were removed.
	Clear() int

	// Stats returns a point-in-time statistics snapshot.
	Stats() Stats

	// Close releases resources (stops background goroutines, etc.).
	Close() error
}

// Fetcher loads a value from the source of truth on a cache miss.
type Fetcher[V any] func(ctx context.Context) (V, error)

// Marshaler serializes and deserializes cache values.
// The serialized length is what the store charges against its byte budget.
type Marshaler[V any] interface {
	Marshal(v V) ([]byte, error)
	Unmarshal(data []byte) (V, error)
}

type jsonMarshaler[V any] struct{}

func (jsonMarshaler[V]) Marshal(v V) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrMarshal, err)
	}
	return data, nil
}

func (jsonMarshaler[V]) Unmarshal(data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errors.Join(ErrUnmarshal, err)
	}
	return v, nil
}

// JSON returns the default JSON marshaler.
func JSON[V any]() Marshaler[V] {
	return jsonMarshaler[V]{}
}
