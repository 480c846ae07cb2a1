// Package metrics exports cache statistics to Prometheus.
//
// The collector reads a strategy.Manager on every scrape, so no counters
// are duplicated:
//
//	if _, err := metrics.Register(prometheus.DefaultRegisterer, manager, ""); err != nil {
//	    return err
//	}
package metrics
