package cache

import (
	"io"
	"log/slog"
	"time"

	"github.com/dmitrymomot/cachekit/pkg/persist"
)

// Option configures a Store.
type Option func(*options)

type options struct {
	logger          *slog.Logger
	backend         persist.Backend
	onEvict         func(key string, reason EvictReason)
	now             func() time.Time
	name            string
	version         string
	policy          PolicyKind
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	restoreTimeout  time.Duration
	maxSizeBytes    int64
	prefetchWorkers int
	compress        bool
}

func defaultOptions() *options {
	return &options{
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:             time.Now,
		name:            "default",
		version:         "1",
		policy:          PolicyLRU,
		defaultTTL:      time.Hour,
		cleanupInterval: time.Minute,
		restoreTimeout:  5 * time.Second,
		maxSizeBytes:    0, // 0 = unlimited
		prefetchWorkers: 8,
	}
}

// WithName sets the store name used in logs and in the snapshot key.
// Default: "default".
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithDefaultTTL sets the default expiration for entries when
// Set is called with a zero TTL.
// Default: 1 hour.
func WithDefaultTTL(d time.Duration) Option {
	return func(o *options) {
		o.defaultTTL = d
	}
}

// WithMaxSizeBytes sets the byte budget of the store. Entries are
// evicted through the eviction policy until a new value fits.
// Zero means unlimited.
// Default: 0 (unlimited).
func WithMaxSizeBytes(n int64) Option {
	return func(o *options) {
		o.maxSizeBytes = max(n, 0)
	}
}

// WithPolicy selects the eviction policy.
// Default: PolicyLRU.
func WithPolicy(kind PolicyKind) Option {
	return func(o *options) {
		o.policy = kind
	}
}

// WithCleanupInterval sets how often expired entries are removed
// by the background janitor goroutine. Zero disables the janitor.
// Default: 1 minute.
func WithCleanupInterval(d time.Duration) Option {
	return func(o *options) {
		o.cleanupInterval = d
	}
}

// WithCompression enables zstd compression of serialized values.
// Size accounting uses the compressed length.
func WithCompression(enabled bool) Option {
	return func(o *options) {
		o.compress = enabled
	}
}

// WithPersistence snapshots the store to backend after every mutation
// and restores the snapshot tagged with version on construction.
// A nil backend disables persistence.
func WithPersistence(backend persist.Backend, version string) Option {
	return func(o *options) {
		o.backend = backend
		if version != "" {
			o.version = version
		}
	}
}

// WithRestoreTimeout bounds the snapshot load performed on construction.
// Default: 5 seconds.
func WithRestoreTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.restoreTimeout = d
		}
	}
}

// WithLogger sets the logger. Nil keeps the discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithOnEvict registers a callback invoked after an entry leaves the store.
// It runs outside the store lock, so it may call back into the store.
func WithOnEvict(fn func(key string, reason EvictReason)) Option {
	return func(o *options) {
		o.onEvict = fn
	}
}

// WithPrefetchWorkers limits how many fetches Prefetch runs at once.
// Default: 8.
func WithPrefetchWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.prefetchWorkers = n
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
