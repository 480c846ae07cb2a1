package strategy

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/dmitrymomot/cachekit/pkg/cache"
	"github.com/dmitrymomot/cachekit/pkg/persist"
)

// DefaultRuleSchedule is how often invalidation rules run unless
// WithRuleSchedule says otherwise.
const DefaultRuleSchedule = "@every 1m"

// RefreshHandler is called for every key a refresh rule marked stale.
// It runs outside every store lock and may call back into the manager.
type RefreshHandler func(ctx context.Context, strategy, key string)

// Option configures a Manager.
type Option func(*options)

type options struct {
	logger          *slog.Logger
	backend         persist.Backend
	onRefresh       RefreshHandler
	now             func() time.Time
	defaultName     string
	version         string
	schedule        string
	storeOpts       []cache.Option
	cleanupInterval time.Duration
}

func defaultOptions() *options {
	return &options{
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:             time.Now,
		defaultName:     "default",
		version:         "1",
		schedule:        DefaultRuleSchedule,
		cleanupInterval: time.Minute,
	}
}

// WithDefault sets the strategy returned by Cache(""). It must be one of
// the registered strategies.
// Default: "default".
func WithDefault(name string) Option {
	return func(o *options) {
		if name != "" {
			o.defaultName = name
		}
	}
}

// WithLogger sets the logger for the manager and every store it owns.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithBackend sets the durable backend used by strategies with Persist
// enabled. Without a backend those strategies run in memory only.
func WithBackend(b persist.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithVersion tags persisted snapshots. Bumping it makes every
// persisted strategy start cold.
// Default: "1".
func WithVersion(v string) Option {
	return func(o *options) {
		if v != "" {
			o.version = v
		}
	}
}

// WithRuleSchedule sets the cron spec for the rule engine. Standard
// five-field expressions and descriptors such as "@every 30s" are accepted.
// An empty spec disables periodic evaluation; RunRules still works.
// Default: "@every 1m".
func WithRuleSchedule(spec string) Option {
	return func(o *options) {
		o.schedule = spec
	}
}

// WithRefreshHandler registers the callback for refresh actions.
func WithRefreshHandler(fn RefreshHandler) Option {
	return func(o *options) {
		o.onRefresh = fn
	}
}

// WithStoreOptions appends options applied to every store after the
// strategy-derived ones.
func WithStoreOptions(opts ...cache.Option) Option {
	return func(o *options) {
		o.storeOpts = append(o.storeOpts, opts...)
	}
}

// WithCleanupInterval sets the expiration sweep interval of every store.
// Default: 1 minute.
func WithCleanupInterval(d time.Duration) Option {
	return func(o *options) {
		o.cleanupInterval = d
	}
}

// WithClock overrides the time source of the manager and its stores.
// Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
