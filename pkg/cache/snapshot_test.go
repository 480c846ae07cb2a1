package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/cachekit/pkg/cache"
	"github.com/dmitrymomot/cachekit/pkg/persist"
)

func persisted(t *testing.T, backend persist.Backend, version string, opts ...cache.Option) *cache.Store[string] {
	t.Helper()

	opts = append([]cache.Option{
		cache.WithName("users"),
		cache.WithPersistence(backend, version),
	}, opts...)
	return newStore[string](t, opts...)
}

// hangingBackend blocks every load until the caller gives up.
type hangingBackend struct{ *persist.Memory }

func (hangingBackend) Load(ctx context.Context, _ string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestStore_Persistence(t *testing.T) {
	t.Parallel()

	t.Run("slow backend does not block construction", func(t *testing.T) {
		t.Parallel()

		start := time.Now()
		s := persisted(t, hangingBackend{persist.NewMemory()}, "v1",
			cache.WithRestoreTimeout(20*time.Millisecond))
		require.Less(t, time.Since(start), 2*time.Second)
		require.Empty(t, s.Keys())
	})

	t.Run("restores entries and stats", func(t *testing.T) {
		t.Parallel()

		backend := persist.NewMemory()
		ctx := context.Background()

		s1 := persisted(t, backend, "v1")
		require.NoError(t, s1.Set(ctx, "a", "1", time.Hour))
		require.NoError(t, s1.Set(ctx, "b", "2", time.Hour))
		_, err := s1.Get(ctx, "a")
		require.NoError(t, err)
		require.NoError(t, s1.Close())

		s2 := persisted(t, backend, "v1")
		v, err := s2.Get(ctx, "b")
		require.NoError(t, err)
		require.Equal(t, "2", v)

		st := s2.Stats()
		require.Equal(t, 2, st.Entries)
		require.Equal(t, int64(2), st.Hits)
		require.Equal(t, st.SizeBytes, sizeSum(t, s2))
	})

	t.Run("lru order survives restart", func(t *testing.T) {
		t.Parallel()

		backend := persist.NewMemory()
		ctx := context.Background()
		opts := []cache.Option{cache.WithPolicy(cache.PolicyLRU), cache.WithMaxSizeBytes(6)}

		s1 := persisted(t, backend, "v1", opts...)
		require.NoError(t, s1.Set(ctx, "a", "1", time.Hour))
		require.NoError(t, s1.Set(ctx, "b", "2", time.Hour))
		_, err := s1.Get(ctx, "a")
		require.NoError(t, err)
		require.NoError(t, s1.Close())

		s2 := persisted(t, backend, "v1", opts...)
		require.NoError(t, s2.Set(ctx, "c", "3", time.Hour))

		require.True(t, s2.Has("a"))
		require.False(t, s2.Has("b"))
	})

	t.Run("lfu frequencies survive restart", func(t *testing.T) {
		t.Parallel()

		backend := persist.NewMemory()
		ctx := context.Background()
		opts := []cache.Option{cache.WithPolicy(cache.PolicyLFU), cache.WithMaxSizeBytes(6)}

		s1 := persisted(t, backend, "v1", opts...)
		require.NoError(t, s1.Set(ctx, "a", "1", time.Hour))
		require.NoError(t, s1.Set(ctx, "b", "2", time.Hour))
		for range 3 {
			_, err := s1.Get(ctx, "b")
			require.NoError(t, err)
		}
		require.NoError(t, s1.Close())

		s2 := persisted(t, backend, "v1", opts...)
		require.NoError(t, s2.Set(ctx, "c", "3", time.Hour))

		require.False(t, s2.Has("a"))
		require.True(t, s2.Has("b"))
	})

	t.Run("version mismatch starts cold", func(t *testing.T) {
		t.Parallel()

		backend := persist.NewMemory()
		ctx := context.Background()

		s1 := persisted(t, backend, "v1")
		require.NoError(t, s1.Set(ctx, "a", "1", time.Hour))
		require.NoError(t, s1.Close())

		s2 := persisted(t, backend, "v2")
		require.Zero(t, s2.Stats().Entries)
	})

	t.Run("corrupt snapshot starts cold", func(t *testing.T) {
		t.Parallel()

		backend := persist.NewMemory()
		require.NoError(t, backend.Save(context.Background(), cache.SnapshotKey("users", "v1"), []byte("{not json")))

		s := persisted(t, backend, "v1")
		require.Zero(t, s.Stats().Entries)
	})

	t.Run("expired entries are not restored", func(t *testing.T) {
		t.Parallel()

		backend := persist.NewMemory()
		clk := newClock()
		ctx := context.Background()

		s1 := persisted(t, backend, "v1", cache.WithClock(clk.Now))
		require.NoError(t, s1.Set(ctx, "short", "1", time.Second))
		require.NoError(t, s1.Set(ctx, "long", "2", time.Hour))
		require.NoError(t, s1.Close())

		clk.Advance(time.Minute)
		s2 := persisted(t, backend, "v1", cache.WithClock(clk.Now))
		require.Equal(t, []string{"long"}, s2.Keys())
	})

	t.Run("mutations are written in the background", func(t *testing.T) {
		t.Parallel()

		backend := persist.NewMemory()
		s := persisted(t, backend, "v1")
		require.NoError(t, s.Set(context.Background(), "a", "1", time.Hour))

		key := cache.SnapshotKey("users", "v1")
		require.Eventually(t, func() bool {
			data, err := backend.Load(context.Background(), key)
			if err != nil {
				return false
			}
			snap, err := cache.DecodeSnapshot(data)
			return err == nil && len(snap.Entries) == 1
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("hits are written in the background", func(t *testing.T) {
		t.Parallel()

		backend := persist.NewMemory()
		s := persisted(t, backend, "v1", cache.WithPolicy(cache.PolicyLFU))
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "a", "1", time.Hour))
		for range 3 {
			_, err := s.Get(ctx, "a")
			require.NoError(t, err)
		}

		key := cache.SnapshotKey("users", "v1")
		require.Eventually(t, func() bool {
			data, err := backend.Load(ctx, key)
			if err != nil {
				return false
			}
			snap, err := cache.DecodeSnapshot(data)
			return err == nil && len(snap.Entries) == 1 && snap.Entries[0].Hits == 3
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("flush writes snapshot synchronously", func(t *testing.T) {
		t.Parallel()

		backend := persist.NewMemory()
		ctx := context.Background()
		s := persisted(t, backend, "v7", cache.WithCompression(true))
		require.NoError(t, s.Set(ctx, "a", "hello", time.Hour))
		require.NoError(t, s.Flush(ctx))

		data, err := backend.Load(ctx, cache.SnapshotKey("users", "v7"))
		require.NoError(t, err)

		snap, err := cache.DecodeSnapshot(data)
		require.NoError(t, err)
		require.Equal(t, "v7", snap.Version)
		require.Equal(t, "users", snap.Store)
		require.NotEmpty(t, snap.Writer)
		require.Len(t, snap.Entries, 1)
		require.Equal(t, "a", snap.Entries[0].Key)
	})

	t.Run("flush without backend", func(t *testing.T) {
		t.Parallel()

		s := newStore[string](t)
		require.ErrorIs(t, s.Flush(context.Background()), cache.ErrNoBackend)
	})

	t.Run("decode rejects garbage", func(t *testing.T) {
		t.Parallel()

		_, err := cache.DecodeSnapshot([]byte("nope"))
		require.ErrorIs(t, err, cache.ErrSnapshotCorrupt)
	})
}
