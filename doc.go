// Package cachekit is an in-process cache toolkit for Go services.
//
// The module is a set of packages that build on each other:
//
//   - pkg/cache: the byte-budgeted store with LRU, LFU and FIFO eviction,
//     TTLs, cache-aside helpers and snapshot persistence
//   - pkg/strategy: named strategies, the Manager that owns one store per
//     strategy, and the invalidation rule engine
//   - pkg/persist: snapshot backends for Redis, Postgres, S3 and memory
//   - pkg/metrics: a Prometheus collector over Manager statistics
//   - pkg/health: readiness checks and probe handlers
//   - fx/cachefx: an fx module wiring a Manager into an application
//   - cmd/cachectl: a CLI to validate strategy files, inspect snapshots,
//     simulate workloads and serve a live configuration
//
// # Quick Start
//
//	m, err := strategy.New[Product](nil, nil)
//	if err != nil {
//	    return err
//	}
//	defer m.Cleanup()
//	if err := m.Start(ctx); err != nil {
//	    return err
//	}
//
//	products, _ := m.Cache(strategy.APIName)
//	p, err := products.GetOrSet(ctx, "product:42", func(ctx context.Context) (Product, error) {
//	    return repo.Product(ctx, 42)
//	}, 0)
//
// Strategies can also be loaded from YAML with strategy.LoadFile; see the
// strategy package for the file format.
package cachekit
