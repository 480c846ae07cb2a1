package cache

import "time"

// EvictReason tells an eviction callback why an entry left the store.
type EvictReason string

// Eviction reasons.
const (
	ReasonCapacity    EvictReason = "capacity"
	ReasonExpired     EvictReason = "expired"
	ReasonDeleted     EvictReason = "deleted"
	ReasonInvalidated EvictReason = "invalidated"
	ReasonCleared     EvictReason = "cleared"
)

// entry is the stored unit. data holds the serialized value, so callers
// never share memory with the cache.
type entry struct {
	createdAt  time.Time
	key        string
	data       []byte
	ttl        time.Duration // negative = never expires
	hits       int64
	size       int64
	seq        uint64
	compressed bool
	stale      bool
}

// expired reports whether the entry's age has reached its TTL.
func (e *entry) expired(now time.Time) bool {
	if e.ttl < 0 {
		return false
	}
	return now.Sub(e.createdAt) >= e.ttl
}

func (e *entry) meta() EntryMeta {
	m := EntryMeta{
		Key:        e.key,
		CreatedAt:  e.createdAt,
		TTL:        e.ttl,
		Hits:       e.hits,
		SizeBytes:  e.size,
		Compressed: e.compressed,
		Stale:      e.stale,
	}
	if e.ttl >= 0 {
		m.ExpiresAt = e.createdAt.Add(e.ttl)
	}
	return m
}

// EntryMeta is a read-only view of an entry's bookkeeping.
type EntryMeta struct {
	CreatedAt  time.Time     `json:"created_at"`
	ExpiresAt  time.Time     `json:"expires_at,omitzero"`
	Key        string        `json:"key"`
	TTL        time.Duration `json:"ttl"`
	Hits       int64         `json:"hits"`
	SizeBytes  int64         `json:"size_bytes"`
	Compressed bool          `json:"compressed"`
	Stale      bool          `json:"stale"`
}

// Age returns how long ago the entry was created, relative to now.
func (m EntryMeta) Age(now time.Time) time.Duration {
	return now.Sub(m.CreatedAt)
}
