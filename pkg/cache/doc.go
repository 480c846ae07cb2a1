// Package cache provides a generic, byte-bounded in-memory store with TTL
// expiration, pluggable eviction policies and optional snapshot persistence.
//
// # Store
//
// [New] creates a [Store] for one value type. Values are serialized with a
// [Marshaler] (JSON by default) on Set and decoded on Get, and the
// serialized length is charged against the byte budget:
//
//	c, err := cache.New[User](nil,
//	    cache.WithName("users"),
//	    cache.WithDefaultTTL(5 * time.Minute),
//	    cache.WithMaxSizeBytes(10 << 20),
//	    cache.WithPolicy(cache.PolicyLRU),
//	)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	c.Set(ctx, "user:123", user, 0)       // uses default TTL
//	u, err := c.Get(ctx, "user:123")      // ErrNotFound on miss
//
// TTL semantics for Set:
//   - Positive duration: item expires after this duration
//   - Zero: use the store's configured default TTL (1 hour by default)
//   - Negative: item never expires
//
// # Eviction
//
// When a new value does not fit, the store asks its [Policy] for victims
// until it does:
//
//   - [PolicyLRU] evicts the least recently touched key (set and hit both touch)
//   - [PolicyLFU] evicts the key with the fewest hits, oldest first on ties
//   - [PolicyFIFO] evicts the oldest inserted key, ignoring reads
//
// A value larger than the whole budget is rejected with [ErrCapacity].
//
// # Expiration
//
// Expired entries are dropped lazily by Get and periodically by a janitor
// goroutine (see [WithCleanupInterval]). [Store.Close] stops the janitor.
//
// # Access patterns
//
//   - [Store.GetOrSet] is cache-aside; concurrent misses for a key share one fetch
//   - [Store.StaleWhileRevalidate] serves the cached value and refreshes in the background
//   - [Store.NetworkFirst] prefers a fresh fetch and falls back to any cached value
//   - [Store.Prefetch] warms many keys concurrently
//
// # Persistence
//
// [WithPersistence] snapshots the store to a [persist.Backend] after
// mutations and restores it on construction. Snapshots are tagged with a
// version; a different version starts the store empty. Backend failures
// are logged and never break the in-memory store.
//
// # Error Handling
//
// The package defines sentinel errors:
//
//   - [ErrNotFound]: key does not exist or has expired
//   - [ErrClosed]: mutation on a closed store
//   - [ErrCapacity]: value larger than the byte budget
//   - [ErrMarshal] / [ErrUnmarshal]: serialization failed
//   - [ErrSnapshotCorrupt]: persisted snapshot could not be decoded
//
// Use [errors.Is] to check:
//
//	val, err := c.Get(ctx, "key")
//	if errors.Is(err, cache.ErrNotFound) {
//	    // handle miss
//	}
package cache
