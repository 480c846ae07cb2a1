// Package strategy runs many independently configured caches side by side.
//
// A Strategy declares the TTL, byte budget, eviction policy, compression,
// persistence and invalidation rules of one named cache. A Manager builds
// one cache.Store per strategy and exposes them by name:
//
//	m, err := strategy.New[Page](nil, strategy.Defaults(),
//	    strategy.WithDefault(strategy.StaticName),
//	    strategy.WithLogger(log),
//	)
//	if err != nil {
//	    return err
//	}
//	defer m.Cleanup()
//
//	pages, _ := m.Cache("")
//	page, err := pages.GetOrSet(ctx, "home", loadHome, 0)
//
// # Rules
//
// Every strategy carries an ordered list of rules. A rule pairs one of four
// conditions with an action:
//
//   - TimeCondition: entries older than a duration
//   - SizeCondition: the store holds more than a byte threshold
//   - PatternCondition: keys matched by a regexp or glob pattern
//   - ManualCondition: a named signal raised through Manager.Signal
//
// Actions are evict, refresh (mark stale and call the RefreshHandler) and
// compress. After Start, time, size and pattern rules run on the cron
// schedule set by WithRuleSchedule.
//
// # Configuration files
//
// LoadFile and Parse read strategies from YAML. Sizes accept plain byte
// counts or unit strings such as "10MB" and "512KiB"; durations use Go
// syntax.
package strategy
