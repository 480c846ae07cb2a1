package logger

import (
	"context"
	"log/slog"
)

type strategyKey struct{}

// WithStrategy returns a context whose log records carry the strategy name.
func WithStrategy(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, strategyKey{}, name)
}

// StrategyFromContext returns the strategy name stored by WithStrategy.
func StrategyFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(strategyKey{}).(string)
	return name, ok && name != ""
}

// StrategyExtractor adds a "strategy" attribute when the context has one.
func StrategyExtractor(ctx context.Context) (slog.Attr, bool) {
	if name, ok := StrategyFromContext(ctx); ok {
		return slog.String("strategy", name), true
	}
	return slog.Attr{}, false
}
