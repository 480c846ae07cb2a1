package metrics_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/cachekit/pkg/cache"
	"github.com/dmitrymomot/cachekit/pkg/metrics"
	"github.com/dmitrymomot/cachekit/pkg/strategy"
)

type fakeSource struct {
	stats map[string]strategy.StrategyStats
	rules strategy.RuleStats
}

func (f fakeSource) Stats() map[string]strategy.StrategyStats { return f.stats }
func (f fakeSource) RuleStats() strategy.RuleStats            { return f.rules }

func newSource() fakeSource {
	return fakeSource{
		stats: map[string]strategy.StrategyStats{
			"api": {
				Cache: cache.Stats{
					Hits: 3, Misses: 1, Evictions: 2, Entries: 5,
					SizeBytes: 120, MaxSizeBytes: 1024, HitRatePercent: 75,
				},
				Totals: strategy.Totals{Hits: 3, Misses: 1, Evictions: 2},
			},
			"session": {Cache: cache.Stats{Entries: 1, SizeBytes: 10}},
		},
		rules: strategy.RuleStats{Runs: 4, Signals: 1, Evicted: 6},
	}
}

func TestCollector(t *testing.T) {
	t.Parallel()

	t.Run("exports per-strategy cache stats", func(t *testing.T) {
		t.Parallel()

		c := metrics.NewCollector(newSource(), "")
		expected := `
# HELP cachekit_cache_hits_total Cache lookups that found a live entry.
# TYPE cachekit_cache_hits_total counter
cachekit_cache_hits_total{strategy="api"} 3
cachekit_cache_hits_total{strategy="session"} 0
# HELP cachekit_cache_hit_ratio Hits divided by lookups, between 0 and 1.
# TYPE cachekit_cache_hit_ratio gauge
cachekit_cache_hit_ratio{strategy="api"} 0.75
cachekit_cache_hit_ratio{strategy="session"} 0
# HELP cachekit_cache_size_bytes Bytes currently charged against the budget.
# TYPE cachekit_cache_size_bytes gauge
cachekit_cache_size_bytes{strategy="api"} 120
cachekit_cache_size_bytes{strategy="session"} 10
`
		err := testutil.CollectAndCompare(c, strings.NewReader(expected),
			"cachekit_cache_hits_total", "cachekit_cache_hit_ratio", "cachekit_cache_size_bytes")
		require.NoError(t, err)
	})

	t.Run("exports rule counters", func(t *testing.T) {
		t.Parallel()

		c := metrics.NewCollector(newSource(), "app")
		expected := `
# HELP app_rule_runs_total Completed invalidation rule passes.
# TYPE app_rule_runs_total counter
app_rule_runs_total 4
# HELP app_rule_evicted_total Entries evicted by rules and signals.
# TYPE app_rule_evicted_total counter
app_rule_evicted_total 6
`
		err := testutil.CollectAndCompare(c, strings.NewReader(expected),
			"app_rule_runs_total", "app_rule_evicted_total")
		require.NoError(t, err)
	})

	t.Run("metric count", func(t *testing.T) {
		t.Parallel()

		c := metrics.NewCollector(newSource(), "")
		// 7 per strategy, 5 rule counters.
		require.Equal(t, 2*7+5, testutil.CollectAndCount(c))
	})
}

func TestRegister(t *testing.T) {
	t.Parallel()

	t.Run("registers collector", func(t *testing.T) {
		t.Parallel()

		reg := prometheus.NewRegistry()
		c, err := metrics.Register(reg, newSource(), "")
		require.NoError(t, err)
		require.NotNil(t, c)

		families, err := reg.Gather()
		require.NoError(t, err)
		require.NotEmpty(t, families)
	})

	t.Run("returns existing collector on duplicate", func(t *testing.T) {
		t.Parallel()

		reg := prometheus.NewRegistry()
		first, err := metrics.Register(reg, newSource(), "")
		require.NoError(t, err)

		second, err := metrics.Register(reg, newSource(), "")
		require.NoError(t, err)
		require.Same(t, first, second)
	})

	t.Run("works with a manager", func(t *testing.T) {
		t.Parallel()

		m, err := strategy.New[string](nil, nil, strategy.WithRuleSchedule(""))
		require.NoError(t, err)
		t.Cleanup(func() { _ = m.Cleanup() })

		reg := prometheus.NewRegistry()
		_, err = metrics.Register(reg, m, "")
		require.NoError(t, err)
		require.Equal(t, len(strategy.Defaults())*7+5, testutil.CollectAndCount(metrics.NewCollector(m, "")))
	})

	t.Run("counters survive a strategy rebuild", func(t *testing.T) {
		t.Parallel()

		m, err := strategy.New[string](nil, nil, strategy.WithRuleSchedule(""))
		require.NoError(t, err)
		t.Cleanup(func() { _ = m.Cleanup() })

		ctx := context.Background()
		api, err := m.Cache(strategy.APIName)
		require.NoError(t, err)
		require.NoError(t, api.Set(ctx, "k", "v", 0))
		_, err = api.Get(ctx, "k")
		require.NoError(t, err)

		require.NoError(t, m.UpdateStrategy(strategy.APIName, strategy.Patch{TTL: strategy.Ptr(time.Minute)}))

		expected := `
# HELP cachekit_cache_hits_total Cache lookups that found a live entry.
# TYPE cachekit_cache_hits_total counter
cachekit_cache_hits_total{strategy="api"} 1
cachekit_cache_hits_total{strategy="default"} 0
cachekit_cache_hits_total{strategy="session"} 0
cachekit_cache_hits_total{strategy="static"} 0
`
		err = testutil.CollectAndCompare(metrics.NewCollector(m, ""), strings.NewReader(expected),
			"cachekit_cache_hits_total")
		require.NoError(t, err)
	})
}
