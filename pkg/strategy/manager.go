package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/cachekit/pkg/cache"
)

// Manager owns one cache store per strategy and runs their invalidation
// rules on a schedule.
//
// Stores are created when the manager is built or a strategy is added.
// Rules run only after Start; Cleanup stops the schedule and closes every
// store. Persisted strategies write a final snapshot on Cleanup, so their
// entries survive a restart.
type Manager[V any] struct {
	marshaler   cache.Marshaler[V]
	opts        *options
	schedule    cron.Schedule
	strategies  map[string]Strategy
	stores      map[string]*cache.Store[V]
	carried     map[string]Totals
	cron        *cron.Cron
	cancel      context.CancelFunc
	defaultName string
	counters    ruleCounters
	changeMu    sync.Mutex // serializes store rebuilds and removals
	mu          sync.RWMutex
	started     bool
	closed      bool
}

// StrategyStats pairs a strategy with its store's statistics.
type StrategyStats struct {
	Strategy Strategy    `json:"strategy"`
	Cache    cache.Stats `json:"cache"`
	Totals   Totals      `json:"totals"`
}

// Totals are lookup and eviction counters for a strategy since it was
// registered. Unlike Cache, they survive UpdateStrategy rebuilds.
type Totals struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

func (t Totals) plus(st cache.Stats) Totals {
	return Totals{
		Hits:      t.Hits + st.Hits,
		Misses:    t.Misses + st.Misses,
		Evictions: t.Evictions + st.Evictions,
	}
}

// New builds a manager with one store per strategy. An empty list selects
// Defaults(). A nil marshaler selects JSON.
//
// Example:
//
//	m, err := strategy.New[Product](nil, nil,
//	    strategy.WithDefault(strategy.APIName),
//	    strategy.WithBackend(persist.NewRedis(client, 0)),
//	)
//	if err != nil {
//	    return err
//	}
//	defer m.Cleanup()
//	if err := m.Start(ctx); err != nil {
//	    return err
//	}
func New[V any](m cache.Marshaler[V], strategies []Strategy, opts ...Option) (*Manager[V], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if len(strategies) == 0 {
		strategies = Defaults()
	}

	mgr := &Manager[V]{
		marshaler:   m,
		opts:        o,
		strategies:  make(map[string]Strategy, len(strategies)),
		stores:      make(map[string]*cache.Store[V], len(strategies)),
		carried:     make(map[string]Totals),
		defaultName: o.defaultName,
	}

	if o.schedule != "" {
		sched, err := cron.ParseStandard(o.schedule)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidSchedule, o.schedule, err)
		}
		mgr.schedule = sched
	}

	for _, s := range strategies {
		if err := s.Validate(); err != nil {
			closeStores(mgr.stores)
			return nil, err
		}
		if _, ok := mgr.strategies[s.Name]; ok {
			closeStores(mgr.stores)
			return nil, fmt.Errorf("%w: %q", ErrStrategyExists, s.Name)
		}
		store, err := mgr.newStore(s)
		if err != nil {
			closeStores(mgr.stores)
			return nil, err
		}
		mgr.strategies[s.Name] = s.clone()
		mgr.stores[s.Name] = store
	}

	if _, ok := mgr.strategies[mgr.defaultName]; !ok {
		closeStores(mgr.stores)
		return nil, fmt.Errorf("%w: default %q", ErrUnknownStrategy, mgr.defaultName)
	}

	return mgr, nil
}

// Start begins periodic rule evaluation. The context's values are kept
// for the background runs but its cancellation is not; use Cleanup to stop.
// With an empty schedule Start only marks the manager as started.
func (m *Manager[V]) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.started {
		return ErrAlreadyStarted
	}
	m.started = true

	if m.schedule == nil {
		m.opts.logger.InfoContext(ctx, "cache rule engine disabled")
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cl := cronLogger{logger: m.opts.logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Schedule(m.schedule, cron.FuncJob(func() {
		report := m.RunRules(runCtx)
		m.opts.logger.DebugContext(runCtx, "cache rules evaluated",
			slog.Int("evicted", report.Evicted),
			slog.Int("refreshed", report.Refreshed),
			slog.Int("compressed", report.Compressed),
		)
	}))
	c.Start()

	m.cron = c
	m.cancel = cancel
	m.opts.logger.InfoContext(ctx, "cache rule engine started",
		slog.Int("strategies", len(m.strategies)),
	)
	return nil
}

// Cleanup stops the rule schedule, waits for a running evaluation to
// finish and closes every store. It is idempotent; the first call returns
// the joined store close errors.
func (m *Manager[V]) Cleanup() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	c, cancel := m.cron, m.cancel
	m.cron, m.cancel = nil, nil
	m.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	if cancel != nil {
		cancel()
	}

	m.mu.Lock()
	stores := m.stores
	m.stores = make(map[string]*cache.Store[V])
	m.mu.Unlock()

	return closeStores(stores)
}

// Cache returns the store bound to name. An empty name selects the
// default strategy.
func (m *Manager[V]) Cache(name string) (*cache.Store[V], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	if name == "" {
		name = m.defaultName
	}
	store, ok := m.stores[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return store, nil
}

// DefaultName returns the name of the default strategy.
func (m *Manager[V]) DefaultName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultName
}

// Strategy returns a copy of the named strategy.
func (m *Manager[V]) Strategy(name string) (Strategy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.strategies[name]
	if !ok {
		return Strategy{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return s.clone(), nil
}

// Strategies returns a copy of every registered strategy keyed by name.
func (m *Manager[V]) Strategies() map[string]Strategy {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Strategy, len(m.strategies))
	for name, s := range m.strategies {
		out[name] = s.clone()
	}
	return out
}

// Names returns the registered strategy names in lexical order.
func (m *Manager[V]) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.strategies))
}

// Stats returns every strategy together with its store statistics.
func (m *Manager[V]) Stats() map[string]StrategyStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]StrategyStats, len(m.stores))
	for name, store := range m.stores {
		st := store.Stats()
		out[name] = StrategyStats{
			Strategy: m.strategies[name].clone(),
			Cache:    st,
			Totals:   m.carried[name].plus(st),
		}
	}
	return out
}

// Invalidate removes the keys of the named store matched by pattern, or
// every key when pattern is nil. A nil *regexp.Regexp is rejected with
// ErrInvalidRule. It returns the number of removed entries.
func (m *Manager[V]) Invalidate(name string, pattern Pattern) (int, error) {
	store, err := m.Cache(name)
	if err != nil {
		return 0, err
	}
	if pattern == nil {
		return store.Clear(), nil
	}
	if !validPattern(pattern) {
		return 0, fmt.Errorf("%w: nil pattern", ErrInvalidRule)
	}
	return store.InvalidatePattern(pattern), nil
}

// UpdateStrategy merges patch into the named strategy and rebuilds its
// store with the new parameters. Existing entries are discarded, including
// a persisted snapshot. Callers holding the old store see it closed.
//
// The old store is closed and the new one built without holding the
// registry lock, so other strategies stay available meanwhile.
func (m *Manager[V]) UpdateStrategy(name string, patch Patch) error {
	m.changeMu.Lock()
	defer m.changeMu.Unlock()

	m.mu.RLock()
	closed := m.closed
	current, ok := m.strategies[name]
	old := m.stores[name]
	m.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}

	next := patch.Apply(current)
	if err := next.Validate(); err != nil {
		return err
	}

	// The old store must write its empty snapshot before the new one
	// restores, or the discarded entries would come back.
	m.retire(old)

	store, err := m.newStore(next)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = store.Close()
		return ErrClosed
	}
	m.carried[name] = m.carried[name].plus(old.Stats())
	m.strategies[name] = next
	m.stores[name] = store
	m.mu.Unlock()

	m.opts.logger.Info("cache strategy updated", slog.String("strategy", name))
	return nil
}

// AddStrategy registers def under name and creates its store.
func (m *Manager[V]) AddStrategy(name string, def Strategy) error {
	m.changeMu.Lock()
	defer m.changeMu.Unlock()

	def = def.clone()
	def.Name = name
	if err := def.Validate(); err != nil {
		return err
	}

	m.mu.RLock()
	_, exists := m.strategies[name]
	closed := m.closed
	m.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if exists {
		return fmt.Errorf("%w: %q", ErrStrategyExists, name)
	}

	store, err := m.newStore(def)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		_ = store.Close()
		return ErrClosed
	}
	if _, ok := m.strategies[name]; ok {
		_ = store.Close()
		return fmt.Errorf("%w: %q", ErrStrategyExists, name)
	}
	m.strategies[name] = def
	m.stores[name] = store
	return nil
}

// RemoveStrategy closes the named store and forgets the strategy. Its
// persisted snapshot, if any, is deleted. The default strategy cannot be
// removed.
func (m *Manager[V]) RemoveStrategy(ctx context.Context, name string) error {
	m.changeMu.Lock()
	defer m.changeMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if name == m.defaultName {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrDefaultStrategy, name)
	}
	s, ok := m.strategies[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	store := m.stores[name]
	delete(m.strategies, name)
	delete(m.stores, name)
	delete(m.carried, name)
	m.mu.Unlock()

	if err := store.Close(); err != nil {
		m.opts.logger.WarnContext(ctx, "cache store close failed",
			slog.String("strategy", name),
			slog.Any("error", err),
		)
	}

	if s.Persist && m.opts.backend != nil {
		if err := m.opts.backend.Delete(ctx, cache.SnapshotKey(name, m.opts.version)); err != nil {
			return err
		}
	}
	return nil
}

// SetDefault makes name the strategy returned by Cache("").
func (m *Manager[V]) SetDefault(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.strategies[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	m.defaultName = name
	return nil
}

func (m *Manager[V]) newStore(s Strategy) (*cache.Store[V], error) {
	opts := []cache.Option{
		cache.WithName(s.Name),
		cache.WithDefaultTTL(s.TTL),
		cache.WithMaxSizeBytes(s.MaxSizeBytes),
		cache.WithPolicy(s.Eviction),
		cache.WithCompression(s.Compress),
		cache.WithCleanupInterval(m.opts.cleanupInterval),
		cache.WithLogger(m.opts.logger),
		cache.WithClock(m.opts.now),
	}
	if s.Persist && m.opts.backend != nil {
		opts = append(opts, cache.WithPersistence(m.opts.backend, m.opts.version))
	}
	opts = append(opts, m.opts.storeOpts...)

	store, err := cache.New(m.marshaler, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidStrategy, s.Name, err)
	}
	return store, nil
}

// retire empties a store and closes it.
func (m *Manager[V]) retire(store *cache.Store[V]) {
	store.Clear()
	if err := store.Close(); err != nil {
		m.opts.logger.Warn("cache store close failed",
			slog.String("cache", store.Name()),
			slog.Any("error", err),
		)
	}
}

// closeStores closes every store in stores and empties the map.
func closeStores[V any](stores map[string]*cache.Store[V]) error {
	var errs []error
	for name, store := range stores {
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %q: %w", name, err))
		}
	}
	clear(stores)
	return errors.Join(errs...)
}

// StartFunc returns a startup function for the manager.
func (m *Manager[V]) StartFunc() func(context.Context) error {
	return func(ctx context.Context) error {
		return m.Start(ctx)
	}
}

// Shutdown returns a shutdown function for the manager.
func (m *Manager[V]) Shutdown() func(context.Context) error {
	return func(context.Context) error {
		return m.Cleanup()
	}
}

// Healthcheck returns a closure that fails once the manager is closed.
func (m *Manager[V]) Healthcheck() func(context.Context) error {
	return func(context.Context) error {
		m.mu.RLock()
		defer m.mu.RUnlock()
		if m.closed {
			return ErrClosed
		}
		return nil
	}
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, slog.Any("error", err))...)
}
