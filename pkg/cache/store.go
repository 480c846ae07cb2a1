package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Matcher selects keys for pattern invalidation. *regexp.Regexp satisfies it.
type Matcher interface {
	MatchString(s string) bool
}

// Store is a named, byte-bounded key-value store with TTL expiration and a
// pluggable eviction policy.
//
// Values are serialized on Set and decoded on Get, so the store never
// shares memory with callers. The serialized (optionally compressed)
// length is charged against the byte budget. A single mutex guards the
// entry map, the policy and the counters; no lock is held while a fetcher
// or the persistence backend is running.
type Store[V any] struct {
	items     map[string]*entry
	policy    Policy
	marshaler Marshaler[V]
	opts      *options
	dirty     chan struct{}
	done      chan struct{}
	life      context.Context
	cancel    context.CancelFunc
	writer    string
	flights   singleflight.Group
	refreshes singleflight.Group
	wg        sync.WaitGroup
	persistMu sync.Mutex
	mu        sync.Mutex
	size      int64
	seq       uint64
	hits      int64
	misses    int64
	evictions int64
	closed    bool
}

// New creates a store. A nil marshaler selects JSON.
//
// When persistence is configured, New loads the snapshot for the store's
// name and version before returning. A missing, corrupt or mismatched
// snapshot leaves the store empty; New never fails because of the backend.
//
// Example:
//
//	users, err := cache.New[User](nil,
//	    cache.WithName("users"),
//	    cache.WithDefaultTTL(5*time.Minute),
//	    cache.WithMaxSizeBytes(10<<20),
//	    cache.WithPolicy(cache.PolicyLFU),
//	)
//	defer users.Close()
func New[V any](m Marshaler[V], opts ...Option) (*Store[V], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	policy, err := NewPolicy(o.policy)
	if err != nil {
		return nil, err
	}

	if m == nil {
		m = jsonMarshaler[V]{}
	}

	life, cancel := context.WithCancel(context.Background())
	s := &Store[V]{
		life:      life,
		cancel:    cancel,
		items:     make(map[string]*entry),
		policy:    policy,
		marshaler: m,
		opts:      o,
		done:      make(chan struct{}),
		writer:    uuid.NewString(),
	}

	if o.backend != nil {
		s.restore()
		s.dirty = make(chan struct{}, 1)
		s.wg.Add(1)
		go s.persister()
	}

	if o.cleanupInterval > 0 {
		s.wg.Add(1)
		go s.janitor()
	}

	return s, nil
}

// Name returns the store name.
func (s *Store[V]) Name() string {
	return s.opts.name
}

// Get retrieves a value by key.
// Returns ErrNotFound if the key does not exist or has expired; an expired
// entry is removed on the spot. A hit refreshes the entry's recency and
// frequency for the eviction policy.
func (s *Store[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V

	s.mu.Lock()
	e, ok := s.items[key]
	if !ok {
		s.misses++
		s.mu.Unlock()
		return zero, ErrNotFound
	}

	if e.expired(s.opts.now()) {
		s.removeLocked(e)
		s.misses++
		s.mu.Unlock()
		s.notify([]string{key}, ReasonExpired)
		s.markDirty()
		return zero, ErrNotFound
	}

	s.hits++
	e.hits++
	s.policy.Accessed(key)
	data, compressed := e.data, e.compressed
	s.mu.Unlock()

	// Hit counts seed LFU order on restore.
	s.markDirty()

	v, err := s.decode(data, compressed)
	if err != nil {
		s.opts.logger.WarnContext(ctx, "cache entry could not be decoded",
			slog.String("cache", s.opts.name),
			slog.String("key", key),
			slog.Any("error", err),
		)
		return zero, err
	}
	return v, nil
}

// Set stores a value with the given TTL.
// TTL semantics: positive = expires after duration, zero = use default TTL,
// negative = never expires.
//
// Existing entries are evicted through the policy until the new value
// fits. A value larger than the whole budget is rejected with ErrCapacity
// and nothing is evicted.
func (s *Store[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	data, err := s.marshaler.Marshal(value)
	if err != nil {
		if !errors.Is(err, ErrMarshal) {
			err = errors.Join(ErrMarshal, err)
		}
		return err
	}

	var compressed bool
	if s.opts.compress {
		data, compressed = compress(data)
	}

	size := int64(len(data))
	if limit := s.opts.maxSizeBytes; limit > 0 && size > limit {
		return fmt.Errorf("%w: %q is %d bytes, limit is %d", ErrCapacity, key, size, limit)
	}

	if ttl == 0 {
		ttl = s.opts.defaultTTL
	}
	if ttl == 0 {
		ttl = -1
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	evicted := s.insertLocked(&entry{
		key:        key,
		data:       data,
		createdAt:  s.opts.now(),
		ttl:        ttl,
		size:       size,
		compressed: compressed,
	})
	s.mu.Unlock()

	if len(evicted) > 0 {
		s.opts.logger.DebugContext(ctx, "evicted entries to make room",
			slog.String("cache", s.opts.name),
			slog.String("key", key),
			slog.Int("evicted", len(evicted)),
		)
	}
	s.notify(evicted, ReasonCapacity)
	s.markDirty()
	return nil
}

// Delete removes a key and reports whether it was present.
func (s *Store[V]) Delete(key string) bool {
	s.mu.Lock()
	e, ok := s.items[key]
	if ok {
		s.removeLocked(e)
	}
	s.mu.Unlock()

	if ok {
		s.notify([]string{key}, ReasonDeleted)
		s.markDirty()
	}
	return ok
}

// Has checks whether a key exists and has not expired. It does not count
// as a hit or a miss and does not remove expired entries.
func (s *Store[V]) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	return ok && !e.expired(s.opts.now())
}

// Entry returns the bookkeeping of a live entry without counting a lookup.
func (s *Store[V]) Entry(key string) (EntryMeta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok || e.expired(s.opts.now()) {
		return EntryMeta{}, false
	}
	return e.meta(), true
}

// Keys returns the live keys in insertion order.
func (s *Store[V]) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.now()
	keys := make([]string, 0, len(s.items))
	for _, e := range s.orderedLocked() {
		if !e.expired(now) {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// Clear removes all entries from the store and returns how many were
// removed. Hit, miss and eviction counters are kept.
func (s *Store[V]) Clear() int {
	s.mu.Lock()
	keys := make([]string, 0, len(s.items))
	for key := range s.items {
		keys = append(keys, key)
	}
	s.items = make(map[string]*entry)
	s.policy.Reset()
	s.size = 0
	s.mu.Unlock()

	s.notify(keys, ReasonCleared)
	s.markDirty()
	return len(keys)
}

// Stats returns a point-in-time statistics snapshot.
func (s *Store[V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

// InvalidatePattern removes every key matched by m and returns how many
// entries were removed.
func (s *Store[V]) InvalidatePattern(m Matcher) int {
	return s.removeWhere(func(e *entry) bool { return m.MatchString(e.key) }, ReasonInvalidated)
}

// InvalidatePrefix removes every key starting with prefix and returns how
// many entries were removed.
func (s *Store[V]) InvalidatePrefix(prefix string) int {
	return s.removeWhere(func(e *entry) bool { return strings.HasPrefix(e.key, prefix) }, ReasonInvalidated)
}

// Sweep removes every expired entry and returns how many were removed.
// The janitor calls it on every tick.
func (s *Store[V]) Sweep() int {
	now := s.opts.now()
	return s.removeWhere(func(e *entry) bool { return e.expired(now) }, ReasonExpired)
}

// Close stops the janitor and the persister, writes a final snapshot when
// persistence is configured and releases every entry. Background
// refreshes see their context cancelled; Close does not wait for them and
// their results are dropped.
// Close is idempotent.
func (s *Store[V]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()

	var err error
	if s.opts.backend != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.restoreTimeout)
		err = s.Flush(ctx)
		cancel()
	}

	s.mu.Lock()
	s.items = make(map[string]*entry)
	s.policy.Reset()
	s.size = 0
	s.mu.Unlock()

	return err
}

// janitor periodically removes expired entries.
func (s *Store[V]) janitor() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.opts.logger.Debug("removed expired entries",
					slog.String("cache", s.opts.name),
					slog.Int("removed", n),
				)
			}
		}
	}
}

// insertLocked stores e, replacing any entry under the same key and
// evicting policy victims until e fits. It returns the evicted keys.
// Caller must hold the mutex.
func (s *Store[V]) insertLocked(e *entry) []string {
	if old, ok := s.items[e.key]; ok {
		s.removeLocked(old)
	}

	var evicted []string
	for s.opts.maxSizeBytes > 0 && s.size+e.size > s.opts.maxSizeBytes && len(s.items) > 0 {
		victim, ok := s.policy.Victim()
		if !ok {
			break
		}
		v, ok := s.items[victim]
		if !ok {
			s.policy.Removed(victim)
			continue
		}
		s.removeLocked(v)
		s.evictions++
		evicted = append(evicted, victim)
	}

	s.seq++
	e.seq = s.seq
	s.items[e.key] = e
	s.size += e.size
	s.policy.Inserted(e.key)

	return evicted
}

// removeLocked drops e from the map, the size total and the policy.
// Caller must hold the mutex.
func (s *Store[V]) removeLocked(e *entry) {
	delete(s.items, e.key)
	s.size -= e.size
	s.policy.Removed(e.key)
}

// orderedLocked returns entries sorted by insertion sequence.
// Caller must hold the mutex.
func (s *Store[V]) orderedLocked() []*entry {
	entries := make([]*entry, 0, len(s.items))
	for _, e := range s.items {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b *entry) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})
	return entries
}

func (s *Store[V]) statsLocked() Stats {
	return Stats{
		Hits:           s.hits,
		Misses:         s.misses,
		Evictions:      s.evictions,
		Entries:        len(s.items),
		SizeBytes:      s.size,
		MaxSizeBytes:   s.opts.maxSizeBytes,
		HitRatePercent: hitRate(s.hits, s.misses),
	}
}

// removeWhere deletes every entry matched by pred.
func (s *Store[V]) removeWhere(pred func(e *entry) bool, reason EvictReason) int {
	s.mu.Lock()
	var removed []string
	for _, e := range s.items {
		if pred(e) {
			s.removeLocked(e)
			removed = append(removed, e.key)
		}
	}
	s.mu.Unlock()

	if len(removed) > 0 {
		s.notify(removed, reason)
		s.markDirty()
	}
	return len(removed)
}

// notify runs the eviction callback outside the lock.
func (s *Store[V]) notify(keys []string, reason EvictReason) {
	if s.opts.onEvict == nil {
		return
	}
	for _, key := range keys {
		s.opts.onEvict(key, reason)
	}
}

func (s *Store[V]) decode(data []byte, compressed bool) (V, error) {
	if compressed {
		raw, err := decompress(data)
		if err != nil {
			var zero V
			return zero, err
		}
		data = raw
	}

	v, err := s.marshaler.Unmarshal(data)
	if err != nil && !errors.Is(err, ErrUnmarshal) {
		err = errors.Join(ErrUnmarshal, err)
	}
	return v, err
}

var _ Cache[any] = (*Store[any])(nil)
