// Package cachefx provides an fx module for a strategy-managed cache.
package cachefx

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dmitrymomot/cachekit/pkg/cache"
	"github.com/dmitrymomot/cachekit/pkg/metrics"
	"github.com/dmitrymomot/cachekit/pkg/persist"
	"github.com/dmitrymomot/cachekit/pkg/strategy"
)

// Module provides a *strategy.Manager[V] whose rule engine starts and
// stops with the application.
//
// Optional inputs: *slog.Logger, persist.Backend, *strategy.File,
// cache.Marshaler[V] and prometheus.Registerer. Without a strategy file
// the built-in strategies are used. With a registerer, cache metrics are
// registered on it.
func Module[V any]() fx.Option {
	return fx.Module("cachekit",
		fx.Provide(newManager[V]),
		fx.Invoke(registerMetrics[V]),
	)
}

// Params holds dependencies for creating the manager.
type Params[V any] struct {
	fx.In

	Lifecycle fx.Lifecycle
	Logger    *slog.Logger       `optional:"true"`
	Backend   persist.Backend    `optional:"true"`
	File      *strategy.File     `optional:"true"`
	Marshaler cache.Marshaler[V] `optional:"true"`
}

func newManager[V any](p Params[V]) (*strategy.Manager[V], error) {
	var (
		strategies []strategy.Strategy
		opts       []strategy.Option
	)
	if p.File != nil {
		strategies = p.File.Strategies
		opts = append(opts, p.File.Options()...)
	}
	opts = append(opts,
		strategy.WithLogger(p.Logger),
		strategy.WithBackend(p.Backend),
	)

	m, err := strategy.New(p.Marshaler, strategies, opts...)
	if err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: m.StartFunc(),
		OnStop: func(context.Context) error {
			return m.Cleanup()
		},
	})
	return m, nil
}

// MetricsParams holds dependencies for metrics registration.
type MetricsParams[V any] struct {
	fx.In

	Manager    *strategy.Manager[V]
	Registerer prometheus.Registerer `optional:"true"`
}

func registerMetrics[V any](p MetricsParams[V]) error {
	if p.Registerer == nil {
		return nil
	}
	_, err := metrics.Register(p.Registerer, p.Manager, "")
	return err
}
