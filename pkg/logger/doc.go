// Package logger builds slog loggers for cachekit services.
//
// [New] writes JSON to stdout by default and always installs
// [StrategyExtractor], so any record logged with a context prepared by
// [WithStrategy] carries a "strategy" attribute:
//
//	log := logger.New(logger.WithLevel(slog.LevelDebug))
//	ctx := logger.WithStrategy(ctx, "api")
//	log.InfoContext(ctx, "rules evaluated", slog.Int("evicted", 3))
//	// {"level":"INFO","msg":"rules evaluated","evicted":3,"strategy":"api"}
//
// Additional extractors plug in with [WithExtractors]. [WithSentry]
// forwards warnings as Sentry logs and errors as Sentry issues, falling
// back to local output when Sentry cannot be initialized.
//
// [NewNope] returns a discard logger, the default everywhere a logger is optional.
package logger
