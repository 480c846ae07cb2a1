package cache_test

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/cachekit/pkg/cache"
)

// clock is a manually advanced time source.
type clock struct {
	now time.Time
	mu  sync.Mutex
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newStore[V any](t *testing.T, opts ...cache.Option) *cache.Store[V] {
	t.Helper()

	opts = append([]cache.Option{cache.WithCleanupInterval(0)}, opts...)
	s, err := cache.New[V](nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// sizeSum adds up the sizes of the entries behind the live keys.
func sizeSum[V any](t *testing.T, s *cache.Store[V]) int64 {
	t.Helper()

	var total int64
	for _, key := range s.Keys() {
		meta, ok := s.Entry(key)
		require.True(t, ok)
		total += meta.SizeBytes
	}
	return total
}

// --- Store: Get / Set ---

func TestStore_GetSet(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrNotFound for missing key", func(t *testing.T) {
		t.Parallel()

		s := newStore[string](t)

		_, err := s.Get(context.Background(), "missing")
		require.ErrorIs(t, err, cache.ErrNotFound)
		require.Equal(t, int64(1), s.Stats().Misses)
	})

	t.Run("round-trips values", func(t *testing.T) {
		t.Parallel()

		type user struct {
			Name  string   `json:"name"`
			Roles []string `json:"roles"`
		}
		s := newStore[user](t)
		ctx := context.Background()

		in := user{Name: "ada", Roles: []string{"admin"}}
		require.NoError(t, s.Set(ctx, "u:1", in, time.Minute))

		out, err := s.Get(ctx, "u:1")
		require.NoError(t, err)
		require.Equal(t, in, out)
	})

	t.Run("stored value is not aliased", func(t *testing.T) {
		t.Parallel()

		s := newStore[[]int](t)
		ctx := context.Background()

		in := []int{1, 2, 3}
		require.NoError(t, s.Set(ctx, "k", in, time.Minute))
		in[0] = 99

		out, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, []int{1, 2, 3}, out)

		out[1] = 42
		again, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, []int{1, 2, 3}, again)
	})

	t.Run("replacing a key keeps size consistent", func(t *testing.T) {
		t.Parallel()

		s := newStore[string](t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "k", "short", time.Minute))
		require.NoError(t, s.Set(ctx, "k", "a much longer value", time.Minute))

		st := s.Stats()
		require.Equal(t, 1, st.Entries)
		require.Equal(t, int64(len(`"a much longer value"`)), st.SizeBytes)
		require.Equal(t, st.SizeBytes, sizeSum(t, s))
	})

	t.Run("counts hits and hit rate", func(t *testing.T) {
		t.Parallel()

		s := newStore[int](t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "k", 1, time.Minute))
		for range 3 {
			_, err := s.Get(ctx, "k")
			require.NoError(t, err)
		}
		_, _ = s.Get(ctx, "missing")

		st := s.Stats()
		require.Equal(t, int64(3), st.Hits)
		require.Equal(t, int64(1), st.Misses)
		require.InDelta(t, 75.0, st.HitRatePercent, 0.001)

		meta, ok := s.Entry("k")
		require.True(t, ok)
		require.Equal(t, int64(3), meta.Hits)
	})

	t.Run("hit rate is zero before any lookup", func(t *testing.T) {
		t.Parallel()

		s := newStore[int](t)
		require.Zero(t, s.Stats().HitRatePercent)
	})

	t.Run("rejects unmarshalable value", func(t *testing.T) {
		t.Parallel()

		s := newStore[any](t)
		err := s.Set(context.Background(), "k", make(chan int), time.Minute)
		require.ErrorIs(t, err, cache.ErrMarshal)
	})

	t.Run("returns ErrClosed after Close", func(t *testing.T) {
		t.Parallel()

		s := newStore[string](t)
		require.NoError(t, s.Close())
		require.NoError(t, s.Close())

		err := s.Set(context.Background(), "k", "v", time.Minute)
		require.ErrorIs(t, err, cache.ErrClosed)
	})
}

// --- Store: TTL ---

func TestStore_TTL(t *testing.T) {
	t.Parallel()

	t.Run("expired entry is a miss and is removed", func(t *testing.T) {
		t.Parallel()

		clk := newClock()
		s := newStore[string](t, cache.WithClock(clk.Now))
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "k", "v", time.Second))
		clk.Advance(2 * time.Second)

		before := s.Stats().Misses
		_, err := s.Get(ctx, "k")
		require.ErrorIs(t, err, cache.ErrNotFound)
		require.Equal(t, before+1, s.Stats().Misses)
		require.Empty(t, s.Keys())
		require.Zero(t, s.Stats().SizeBytes)
	})

	t.Run("lru entry lives for its ttl", func(t *testing.T) {
		t.Parallel()

		clk := newClock()
		s := newStore[string](t, cache.WithClock(clk.Now), cache.WithPolicy(cache.PolicyLRU))
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "k", "v", 1000*time.Millisecond))

		clk.Advance(500 * time.Millisecond)
		v, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, "v", v)

		clk.Advance(600 * time.Millisecond)
		_, err = s.Get(ctx, "k")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("zero ttl uses the default", func(t *testing.T) {
		t.Parallel()

		clk := newClock()
		s := newStore[string](t, cache.WithClock(clk.Now), cache.WithDefaultTTL(time.Minute))

		require.NoError(t, s.Set(context.Background(), "k", "v", 0))
		meta, ok := s.Entry("k")
		require.True(t, ok)
		require.Equal(t, time.Minute, meta.TTL)
		require.Equal(t, clk.Now().Add(time.Minute), meta.ExpiresAt)
	})

	t.Run("negative ttl never expires", func(t *testing.T) {
		t.Parallel()

		clk := newClock()
		s := newStore[string](t, cache.WithClock(clk.Now))

		require.NoError(t, s.Set(context.Background(), "k", "v", -1))
		clk.Advance(24 * 365 * time.Hour)

		require.True(t, s.Has("k"))
		meta, ok := s.Entry("k")
		require.True(t, ok)
		require.True(t, meta.ExpiresAt.IsZero())
	})

	t.Run("has does not count or remove", func(t *testing.T) {
		t.Parallel()

		clk := newClock()
		s := newStore[string](t, cache.WithClock(clk.Now))

		require.NoError(t, s.Set(context.Background(), "k", "v", time.Second))
		require.True(t, s.Has("k"))

		clk.Advance(time.Second)
		require.False(t, s.Has("k"))
		require.Equal(t, 1, s.Stats().Entries)
		require.Zero(t, s.Stats().Misses)
	})

	t.Run("sweep removes expired entries", func(t *testing.T) {
		t.Parallel()

		clk := newClock()
		var (
			mu      sync.Mutex
			reasons []cache.EvictReason
		)
		s := newStore[string](t, cache.WithClock(clk.Now), cache.WithOnEvict(func(_ string, r cache.EvictReason) {
			mu.Lock()
			reasons = append(reasons, r)
			mu.Unlock()
		}))
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "short", "v", time.Second))
		require.NoError(t, s.Set(ctx, "long", "v", time.Hour))
		clk.Advance(time.Minute)

		require.Equal(t, 1, s.Sweep())
		require.Equal(t, []string{"long"}, s.Keys())

		mu.Lock()
		defer mu.Unlock()
		require.Equal(t, []cache.EvictReason{cache.ReasonExpired}, reasons)
	})

	t.Run("janitor sweeps in the background", func(t *testing.T) {
		t.Parallel()

		s, err := cache.New[string](nil, cache.WithCleanupInterval(10*time.Millisecond))
		require.NoError(t, err)
		defer s.Close()

		require.NoError(t, s.Set(context.Background(), "k", "v", time.Millisecond))

		require.Eventually(t, func() bool {
			return s.Stats().Entries == 0
		}, time.Second, 5*time.Millisecond)
	})
}

// --- Store: capacity ---

func TestStore_Capacity(t *testing.T) {
	t.Parallel()

	t.Run("fifo scenario evicts the oldest of three 40-byte entries", func(t *testing.T) {
		t.Parallel()

		s := newStore[string](t, cache.WithPolicy(cache.PolicyFIFO), cache.WithMaxSizeBytes(100))
		ctx := context.Background()

		value := strings.Repeat("x", 38) // 40 bytes once JSON-quoted
		for _, key := range []string{"k1", "k2", "k3"} {
			require.NoError(t, s.Set(ctx, key, value, time.Minute))
		}

		require.Equal(t, []string{"k2", "k3"}, s.Keys())
		st := s.Stats()
		require.Equal(t, int64(1), st.Evictions)
		require.Equal(t, int64(80), st.SizeBytes)
	})

	t.Run("size never exceeds the budget", func(t *testing.T) {
		t.Parallel()

		const limit = 256
		s := newStore[string](t, cache.WithMaxSizeBytes(limit))
		ctx := context.Background()

		for i := range 200 {
			value := strings.Repeat("v", i%50)
			require.NoError(t, s.Set(ctx, "k"+strings.Repeat("x", i%7)+string(rune('a'+i%26)), value, time.Minute))

			st := s.Stats()
			require.LessOrEqual(t, st.SizeBytes, int64(limit))
			require.Equal(t, st.SizeBytes, sizeSum(t, s))
		}
	})

	t.Run("oversized value is rejected without evicting", func(t *testing.T) {
		t.Parallel()

		s := newStore[string](t, cache.WithMaxSizeBytes(10))
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "small", "ok", time.Minute))
		err := s.Set(ctx, "big", strings.Repeat("x", 20), time.Minute)
		require.ErrorIs(t, err, cache.ErrCapacity)

		require.Equal(t, []string{"small"}, s.Keys())
		require.Zero(t, s.Stats().Evictions)
	})

	t.Run("capacity evictions reach the callback", func(t *testing.T) {
		t.Parallel()

		var (
			mu      sync.Mutex
			evicted []string
		)
		s := newStore[string](t,
			cache.WithMaxSizeBytes(6),
			cache.WithOnEvict(func(key string, r cache.EvictReason) {
				require.Equal(t, cache.ReasonCapacity, r)
				mu.Lock()
				evicted = append(evicted, key)
				mu.Unlock()
			}),
		)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "a", "1", time.Minute))
		require.NoError(t, s.Set(ctx, "b", "2", time.Minute))
		require.NoError(t, s.Set(ctx, "c", "3", time.Minute))

		mu.Lock()
		defer mu.Unlock()
		require.Equal(t, []string{"a"}, evicted)
	})
}

// --- Store: eviction policies ---

func TestStore_EvictionOrder(t *testing.T) {
	t.Parallel()

	// Every value is one character, 3 bytes as JSON; the budget fits two.
	const twoEntries = 6

	t.Run("lru evicts the least recently used", func(t *testing.T) {
		t.Parallel()

		s := newStore[string](t, cache.WithPolicy(cache.PolicyLRU), cache.WithMaxSizeBytes(twoEntries))
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "a", "1", time.Minute))
		require.NoError(t, s.Set(ctx, "b", "2", time.Minute))
		_, err := s.Get(ctx, "a")
		require.NoError(t, err)
		require.NoError(t, s.Set(ctx, "c", "3", time.Minute))

		require.True(t, s.Has("a"))
		require.False(t, s.Has("b"))
		require.True(t, s.Has("c"))
	})

	t.Run("lfu evicts the least frequently used", func(t *testing.T) {
		t.Parallel()

		s := newStore[string](t, cache.WithPolicy(cache.PolicyLFU), cache.WithMaxSizeBytes(twoEntries))
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "a", "1", time.Minute))
		require.NoError(t, s.Set(ctx, "b", "2", time.Minute))
		for range 2 {
			_, err := s.Get(ctx, "a")
			require.NoError(t, err)
		}
		require.NoError(t, s.Set(ctx, "c", "3", time.Minute))

		require.True(t, s.Has("a"))
		require.False(t, s.Has("b"))
		require.True(t, s.Has("c"))
	})

	t.Run("lfu breaks ties by insertion order", func(t *testing.T) {
		t.Parallel()

		s := newStore[string](t, cache.WithPolicy(cache.PolicyLFU), cache.WithMaxSizeBytes(twoEntries))
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "a", "1", time.Minute))
		require.NoError(t, s.Set(ctx, "b", "2", time.Minute))
		require.NoError(t, s.Set(ctx, "c", "3", time.Minute))

		require.Equal(t, []string{"b", "c"}, s.Keys())
	})

	t.Run("fifo ignores reads", func(t *testing.T) {
		t.Parallel()

		s := newStore[string](t, cache.WithPolicy(cache.PolicyFIFO), cache.WithMaxSizeBytes(twoEntries))
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "a", "1", time.Minute))
		require.NoError(t, s.Set(ctx, "b", "2", time.Minute))
		for range 5 {
			_, err := s.Get(ctx, "a")
			require.NoError(t, err)
		}
		require.NoError(t, s.Set(ctx, "c", "3", time.Minute))

		require.False(t, s.Has("a"))
		require.True(t, s.Has("b"))
		require.True(t, s.Has("c"))
	})

	t.Run("unknown policy fails construction", func(t *testing.T) {
		t.Parallel()

		_, err := cache.New[string](nil, cache.WithPolicy("random"))
		require.ErrorIs(t, err, cache.ErrUnknownPolicy)
	})
}

// --- Store: removal ---

func TestStore_Removal(t *testing.T) {
	t.Parallel()

	seed := func(t *testing.T, s *cache.Store[string]) {
		t.Helper()
		ctx := context.Background()
		for _, key := range []string{"user:1", "user:2", "order:5"} {
			require.NoError(t, s.Set(ctx, key, key, time.Minute))
		}
	}

	t.Run("invalidate pattern", func(t *testing.T) {
		t.Parallel()

		s := newStore[string](t)
		seed(t, s)

		require.Equal(t, 2, s.InvalidatePattern(regexp.MustCompile(`^user:`)))
		require.Equal(t, []string{"order:5"}, s.Keys())
		require.Equal(t, s.Stats().SizeBytes, sizeSum(t, s))
	})

	t.Run("invalidate prefix", func(t *testing.T) {
		t.Parallel()

		s := newStore[string](t)
		seed(t, s)

		require.Equal(t, 1, s.InvalidatePrefix("order:"))
		require.Equal(t, []string{"user:1", "user:2"}, s.Keys())
	})

	t.Run("delete reports presence", func(t *testing.T) {
		t.Parallel()

		s := newStore[string](t)
		seed(t, s)

		require.True(t, s.Delete("user:1"))
		require.False(t, s.Delete("user:1"))
		require.Equal(t, 2, s.Stats().Entries)
	})

	t.Run("clear keeps counters", func(t *testing.T) {
		t.Parallel()

		s := newStore[string](t)
		seed(t, s)
		_, err := s.Get(context.Background(), "user:1")
		require.NoError(t, err)

		require.Equal(t, 3, s.Clear())

		st := s.Stats()
		require.Zero(t, st.Entries)
		require.Zero(t, st.SizeBytes)
		require.Equal(t, int64(1), st.Hits)
		require.Empty(t, s.Keys())
	})

	t.Run("callback reasons", func(t *testing.T) {
		t.Parallel()

		var (
			mu  sync.Mutex
			got = map[string]cache.EvictReason{}
		)
		s := newStore[string](t, cache.WithOnEvict(func(key string, r cache.EvictReason) {
			mu.Lock()
			got[key] = r
			mu.Unlock()
		}))
		seed(t, s)

		s.Delete("order:5")
		s.InvalidatePrefix("user:1")
		s.Clear()

		mu.Lock()
		defer mu.Unlock()
		require.Equal(t, map[string]cache.EvictReason{
			"order:5": cache.ReasonDeleted,
			"user:1":  cache.ReasonInvalidated,
			"user:2":  cache.ReasonCleared,
		}, got)
	})
}

// --- Store: compression ---

func TestStore_Compression(t *testing.T) {
	t.Parallel()

	t.Run("compressible values are stored smaller", func(t *testing.T) {
		t.Parallel()

		s := newStore[string](t, cache.WithCompression(true))
		ctx := context.Background()

		value := strings.Repeat("compress me ", 200)
		require.NoError(t, s.Set(ctx, "k", value, time.Minute))

		meta, ok := s.Entry("k")
		require.True(t, ok)
		require.True(t, meta.Compressed)
		require.Less(t, meta.SizeBytes, int64(len(value)))

		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, value, got)
	})

	t.Run("tiny values stay uncompressed", func(t *testing.T) {
		t.Parallel()

		s := newStore[string](t, cache.WithCompression(true))
		require.NoError(t, s.Set(context.Background(), "k", "a", time.Minute))

		meta, ok := s.Entry("k")
		require.True(t, ok)
		require.False(t, meta.Compressed)
		require.Equal(t, int64(3), meta.SizeBytes)
	})
}

// --- Policies ---

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		in   string
		want cache.PolicyKind
	}{
		{in: "lru", want: cache.PolicyLRU},
		{in: " LFU ", want: cache.PolicyLFU},
		{in: "Fifo", want: cache.PolicyFIFO},
	} {
		got, err := cache.ParsePolicy(tc.in)
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}

	_, err := cache.ParsePolicy("arc")
	require.ErrorIs(t, err, cache.ErrUnknownPolicy)
}

func TestPolicy_Order(t *testing.T) {
	t.Parallel()

	t.Run("lru", func(t *testing.T) {
		t.Parallel()

		p, err := cache.NewPolicy(cache.PolicyLRU)
		require.NoError(t, err)
		p.Inserted("a")
		p.Inserted("b")
		p.Inserted("c")
		p.Accessed("a")

		require.Equal(t, []string{"b", "c", "a"}, p.Order())
		victim, ok := p.Victim()
		require.True(t, ok)
		require.Equal(t, "b", victim)

		p.Removed("b")
		victim, _ = p.Victim()
		require.Equal(t, "c", victim)
	})

	t.Run("lfu", func(t *testing.T) {
		t.Parallel()

		p, err := cache.NewPolicy(cache.PolicyLFU)
		require.NoError(t, err)
		p.Inserted("a")
		p.Inserted("b")
		p.Inserted("c")
		p.Accessed("a")
		p.Accessed("a")
		p.Accessed("c")

		require.Equal(t, []string{"b", "c", "a"}, p.Order())
		// Order must not disturb the live heap.
		victim, ok := p.Victim()
		require.True(t, ok)
		require.Equal(t, "b", victim)
	})

	t.Run("fifo", func(t *testing.T) {
		t.Parallel()

		p, err := cache.NewPolicy(cache.PolicyFIFO)
		require.NoError(t, err)
		p.Inserted("a")
		p.Inserted("b")
		p.Accessed("a")

		require.Equal(t, []string{"a", "b"}, p.Order())
	})

	t.Run("empty policy has no victim", func(t *testing.T) {
		t.Parallel()

		for _, kind := range []cache.PolicyKind{cache.PolicyLRU, cache.PolicyLFU, cache.PolicyFIFO} {
			p, err := cache.NewPolicy(kind)
			require.NoError(t, err)
			p.Inserted("a")
			p.Reset()

			_, ok := p.Victim()
			require.False(t, ok, string(kind))
			require.Empty(t, p.Order())
		}
	})
}
