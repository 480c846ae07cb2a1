package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/cachekit/pkg/strategy"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "cachekit"

// Source provides the numbers the collector exports. *strategy.Manager
// satisfies it for any value type.
type Source interface {
	Stats() map[string]strategy.StrategyStats
	RuleStats() strategy.RuleStats
}

// Collector exports per-strategy cache statistics and rule engine
// counters. Values are read from the source on every scrape. The
// per-strategy counters come from Totals, so a rebuilt store does not
// reset them.
type Collector struct {
	source Source

	hits           *prometheus.Desc
	misses         *prometheus.Desc
	evictions      *prometheus.Desc
	entries        *prometheus.Desc
	sizeBytes      *prometheus.Desc
	maxSizeBytes   *prometheus.Desc
	hitRatio       *prometheus.Desc
	ruleRuns       *prometheus.Desc
	ruleSignals    *prometheus.Desc
	ruleEvicted    *prometheus.Desc
	ruleRefreshed  *prometheus.Desc
	ruleCompressed *prometheus.Desc
}

// Compile-time check that Collector implements prometheus.Collector.
var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector over source. An empty namespace
// selects DefaultNamespace.
func NewCollector(source Source, namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	labels := []string{"strategy"}
	desc := func(name, help string, labels []string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}

	return &Collector{
		source:         source,
		hits:           desc("cache_hits_total", "Cache lookups that found a live entry.", labels),
		misses:         desc("cache_misses_total", "Cache lookups that found nothing or an expired entry.", labels),
		evictions:      desc("cache_evictions_total", "Entries evicted to stay within the byte budget.", labels),
		entries:        desc("cache_entries", "Entries currently stored.", labels),
		sizeBytes:      desc("cache_size_bytes", "Bytes currently charged against the budget.", labels),
		maxSizeBytes:   desc("cache_max_size_bytes", "Configured byte budget, 0 when unlimited.", labels),
		hitRatio:       desc("cache_hit_ratio", "Hits divided by lookups, between 0 and 1.", labels),
		ruleRuns:       desc("rule_runs_total", "Completed invalidation rule passes.", nil),
		ruleSignals:    desc("rule_signals_total", "Manual signals raised.", nil),
		ruleEvicted:    desc("rule_evicted_total", "Entries evicted by rules and signals.", nil),
		ruleRefreshed:  desc("rule_refreshed_total", "Entries marked for refresh by rules and signals.", nil),
		ruleCompressed: desc("rule_compressed_total", "Entries compressed by rules and signals.", nil),
	}
}

// Register creates a collector and registers it with reg. A nil reg
// selects prometheus.DefaultRegisterer. If an equal collector is already
// registered, the existing one is returned.
func Register(reg prometheus.Registerer, source Source, namespace string) (prometheus.Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := NewCollector(source, namespace)
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector, nil
		}
		return nil, err
	}
	return c, nil
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.hits, c.misses, c.evictions, c.entries, c.sizeBytes, c.maxSizeBytes, c.hitRatio,
		c.ruleRuns, c.ruleSignals, c.ruleEvicted, c.ruleRefreshed, c.ruleCompressed,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for name, s := range c.source.Stats() {
		st, tot := s.Cache, s.Totals
		ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(tot.Hits), name)
		ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(tot.Misses), name)
		ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(tot.Evictions), name)
		ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(st.Entries), name)
		ch <- prometheus.MustNewConstMetric(c.sizeBytes, prometheus.GaugeValue, float64(st.SizeBytes), name)
		ch <- prometheus.MustNewConstMetric(c.maxSizeBytes, prometheus.GaugeValue, float64(st.MaxSizeBytes), name)
		ch <- prometheus.MustNewConstMetric(c.hitRatio, prometheus.GaugeValue, st.HitRatePercent/100, name)
	}

	rs := c.source.RuleStats()
	ch <- prometheus.MustNewConstMetric(c.ruleRuns, prometheus.CounterValue, float64(rs.Runs))
	ch <- prometheus.MustNewConstMetric(c.ruleSignals, prometheus.CounterValue, float64(rs.Signals))
	ch <- prometheus.MustNewConstMetric(c.ruleEvicted, prometheus.CounterValue, float64(rs.Evicted))
	ch <- prometheus.MustNewConstMetric(c.ruleRefreshed, prometheus.CounterValue, float64(rs.Refreshed))
	ch <- prometheus.MustNewConstMetric(c.ruleCompressed, prometheus.CounterValue, float64(rs.Compressed))
}
