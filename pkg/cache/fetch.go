package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// GetOrSet returns the cached value for key, or calls fetch on a miss and
// caches its result.
//
// Concurrent misses for the same key share one fetch call. If fetch fails
// its error is returned unchanged and nothing is cached. Caching the fetched
// value is best-effort: a value that cannot be stored is still returned.
func (s *Store[V]) GetOrSet(ctx context.Context, key string, fetch Fetcher[V], ttl time.Duration) (V, error) {
	if v, err := s.Get(ctx, key); err == nil {
		return v, nil
	}
	return s.load(ctx, key, fetch, ttl)
}

// Prefetch populates every key that is not already cached. Fetches run
// concurrently, bounded by WithPrefetchWorkers. A failing fetch is logged
// and does not stop the others. Returns the number of keys loaded.
func (s *Store[V]) Prefetch(ctx context.Context, keys []string, fetch func(ctx context.Context, key string) (V, error), ttl time.Duration) int {
	var (
		g      errgroup.Group
		loaded atomic.Int64
	)
	g.SetLimit(s.opts.prefetchWorkers)

	for _, key := range keys {
		if s.Has(key) {
			continue
		}
		g.Go(func() error {
			_, err := s.load(ctx, key, func(ctx context.Context) (V, error) {
				return fetch(ctx, key)
			}, ttl)
			if err != nil {
				s.opts.logger.WarnContext(ctx, "prefetch failed",
					slog.String("cache", s.opts.name),
					slog.String("key", key),
					slog.Any("error", err),
				)
				return nil
			}
			loaded.Add(1)
			return nil
		})
	}

	_ = g.Wait()
	return int(loaded.Load())
}

// StaleWhileRevalidate returns a cached value immediately and refreshes it
// in the background. Background failures are logged and the cached value
// stays in place. A cold key is fetched synchronously.
func (s *Store[V]) StaleWhileRevalidate(ctx context.Context, key string, fetch Fetcher[V], ttl time.Duration) (V, error) {
	if v, err := s.Get(ctx, key); err == nil {
		s.revalidate(ctx, key, fetch, ttl)
		return v, nil
	}
	return s.load(ctx, key, fetch, ttl)
}

// NetworkFirst calls fetch first and caches the result. When fetch fails,
// any value still held for key is returned, even one past its TTL. The
// fetch error is returned only when nothing is cached.
func (s *Store[V]) NetworkFirst(ctx context.Context, key string, fetch Fetcher[V], ttl time.Duration) (V, error) {
	v, err := fetch(ctx)
	if err == nil {
		if setErr := s.Set(ctx, key, v, ttl); setErr != nil {
			s.logSetFailure(ctx, key, setErr)
		}
		return v, nil
	}

	if cached, ok := s.lookup(key, true); ok {
		s.opts.logger.WarnContext(ctx, "fetch failed, serving cached value",
			slog.String("cache", s.opts.name),
			slog.String("key", key),
			slog.Any("error", err),
		)
		return cached, nil
	}

	var zero V
	return zero, err
}

// load runs fetch for key at most once at a time and caches the result.
func (s *Store[V]) load(ctx context.Context, key string, fetch Fetcher[V], ttl time.Duration) (V, error) {
	res, err, _ := s.flights.Do(key, func() (any, error) {
		// Another caller may have filled the key between our miss and
		// entering the flight.
		if v, ok := s.lookup(key, false); ok {
			return v, nil
		}

		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if setErr := s.Set(ctx, key, v, ttl); setErr != nil {
			s.logSetFailure(ctx, key, setErr)
		}
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}

	v, _ := res.(V)
	return v, nil
}

// revalidate refreshes key in the background. Concurrent refreshes of the
// same key collapse into one. The fetch outlives the caller's context but
// not the store.
func (s *Store[V]) revalidate(ctx context.Context, key string, fetch Fetcher[V], ttl time.Duration) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	bg := refreshContext{Context: s.life, values: ctx}
	go func() {
		_, err, _ := s.refreshes.Do(key, func() (any, error) {
			v, err := fetch(bg)
			if err != nil {
				return nil, err
			}
			return nil, s.Set(bg, key, v, ttl)
		})
		if err == nil {
			return
		}

		level := slog.LevelWarn
		if errors.Is(err, ErrClosed) || bg.Err() != nil {
			level = slog.LevelDebug
		}
		s.opts.logger.Log(bg, level, "background revalidation failed",
			slog.String("cache", s.opts.name),
			slog.String("key", key),
			slog.Any("error", err),
		)
	}()
}

// refreshContext carries the caller's values with the store's lifetime.
type refreshContext struct {
	context.Context
	values context.Context
}

func (c refreshContext) Value(key any) any {
	return c.values.Value(key)
}

// lookup decodes the value under key without touching counters or policy
// state. With allowExpired, entries past their TTL are returned too.
func (s *Store[V]) lookup(key string, allowExpired bool) (V, bool) {
	var zero V

	s.mu.Lock()
	e, ok := s.items[key]
	if !ok || (!allowExpired && e.expired(s.opts.now())) {
		s.mu.Unlock()
		return zero, false
	}
	data, compressed := e.data, e.compressed
	s.mu.Unlock()

	v, err := s.decode(data, compressed)
	if err != nil {
		return zero, false
	}
	return v, true
}

func (s *Store[V]) logSetFailure(ctx context.Context, key string, err error) {
	level := slog.LevelWarn
	if errors.Is(err, ErrClosed) {
		level = slog.LevelDebug
	}
	s.opts.logger.Log(ctx, level, "fetched value was not cached",
		slog.String("cache", s.opts.name),
		slog.String("key", key),
		slog.Any("error", err),
	)
}
