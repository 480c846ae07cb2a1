package strategy

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/cachekit/pkg/cache"
	"github.com/dmitrymomot/cachekit/pkg/logger"
)

// Report counts what one rule pass or signal did.
type Report struct {
	Evicted    int `json:"evicted"`
	Refreshed  int `json:"refreshed"`
	Compressed int `json:"compressed"`
}

// Total returns the number of affected entries.
func (r Report) Total() int {
	return r.Evicted + r.Refreshed + r.Compressed
}

func (r *Report) add(o Report) {
	r.Evicted += o.Evicted
	r.Refreshed += o.Refreshed
	r.Compressed += o.Compressed
}

// RuleStats are cumulative rule engine counters.
type RuleStats struct {
	Runs       int64 `json:"runs"`
	Signals    int64 `json:"signals"`
	Evicted    int64 `json:"evicted"`
	Refreshed  int64 `json:"refreshed"`
	Compressed int64 `json:"compressed"`
}

type ruleCounters struct {
	runs       atomic.Int64
	signals    atomic.Int64
	evicted    atomic.Int64
	refreshed  atomic.Int64
	compressed atomic.Int64
}

func (c *ruleCounters) record(r Report) {
	c.evicted.Add(int64(r.Evicted))
	c.refreshed.Add(int64(r.Refreshed))
	c.compressed.Add(int64(r.Compressed))
}

// RuleStats returns the cumulative rule engine counters.
func (m *Manager[V]) RuleStats() RuleStats {
	return RuleStats{
		Runs:       m.counters.runs.Load(),
		Signals:    m.counters.signals.Load(),
		Evicted:    m.counters.evicted.Load(),
		Refreshed:  m.counters.refreshed.Load(),
		Compressed: m.counters.compressed.Load(),
	}
}

type target[V any] struct {
	store    *cache.Store[V]
	strategy Strategy
}

func (m *Manager[V]) targets() []target[V] {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil
	}
	out := make([]target[V], 0, len(m.stores))
	for name, store := range m.stores {
		out = append(out, target[V]{store: store, strategy: m.strategies[name].clone()})
	}
	return out
}

// RunRules evaluates every time, size and pattern rule of every strategy
// once. Manual rules are skipped; see Signal. The refresh handler is called
// for newly marked keys after each strategy's rules have run.
func (m *Manager[V]) RunRules(ctx context.Context) Report {
	m.counters.runs.Add(1)

	var total Report
	for _, t := range m.targets() {
		if ctx.Err() != nil {
			break
		}
		sctx := logger.WithStrategy(ctx, t.strategy.Name)
		now := m.opts.now()

		var marked []string
		for _, r := range t.strategy.Rules {
			res, keys := apply(t.store, r, now)
			if res.Total() > 0 {
				m.opts.logger.DebugContext(sctx, "cache rule applied",
					slog.String("rule", r.String()),
					slog.Int("affected", res.Total()),
				)
			}
			total.add(res)
			marked = append(marked, keys...)
		}
		m.refresh(sctx, t.strategy.Name, marked)
	}

	m.counters.record(total)
	return total
}

// Signal applies every manual rule listening for signal, across all
// strategies. evict clears the store, refresh marks every entry stale and
// compress compresses every entry.
func (m *Manager[V]) Signal(ctx context.Context, signal string) (Report, error) {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return Report{}, ErrClosed
	}

	m.counters.signals.Add(1)

	var total Report
	for _, t := range m.targets() {
		sctx := logger.WithStrategy(ctx, t.strategy.Name)

		var marked []string
		for _, r := range t.strategy.Rules {
			c, ok := r.Condition.(ManualCondition)
			if !ok || c.Signal != signal {
				continue
			}
			var (
				res  Report
				keys []string
			)
			if r.Action == ActionEvict {
				res = Report{Evicted: t.store.Clear()}
			} else {
				res, keys = act(t.store, r.Action, everything)
			}
			m.opts.logger.InfoContext(sctx, "cache signal applied",
				slog.String("signal", signal),
				slog.String("action", string(r.Action)),
				slog.Int("affected", res.Total()),
			)
			total.add(res)
			marked = append(marked, keys...)
		}
		m.refresh(sctx, t.strategy.Name, marked)
	}

	m.counters.record(total)
	return total, nil
}

func (m *Manager[V]) refresh(ctx context.Context, strategy string, keys []string) {
	if m.opts.onRefresh == nil {
		return
	}
	for _, key := range keys {
		m.opts.onRefresh(ctx, strategy, key)
	}
}

// apply evaluates one rule against store. It returns the counts and the
// keys newly marked for refresh.
func apply[V any](store *cache.Store[V], r Rule, now time.Time) (Report, []string) {
	switch c := r.Condition.(type) {
	case TimeCondition:
		return act(store, r.Action, func(e cache.EntryMeta) bool {
			return e.Age(now) > c.After
		})
	case SizeCondition:
		if store.Stats().SizeBytes <= c.Bytes {
			return Report{}, nil
		}
		switch r.Action {
		case ActionEvict:
			return Report{Evicted: store.ShrinkTo(c.Bytes)}, nil
		case ActionCompress:
			return Report{Compressed: store.CompressTo(c.Bytes)}, nil
		}
	case PatternCondition:
		return act(store, r.Action, func(e cache.EntryMeta) bool {
			return c.Pattern.MatchString(e.Key)
		})
	case ManualCondition:
	}
	return Report{}, nil
}

func act[V any](store *cache.Store[V], a Action, pred func(cache.EntryMeta) bool) (Report, []string) {
	switch a {
	case ActionEvict:
		return Report{Evicted: store.RemoveIf(pred)}, nil
	case ActionRefresh:
		marked := store.MarkStaleIf(pred)
		return Report{Refreshed: len(marked)}, marked
	case ActionCompress:
		return Report{Compressed: store.CompressIf(pred)}, nil
	}
	return Report{}, nil
}

func everything(cache.EntryMeta) bool { return true }
