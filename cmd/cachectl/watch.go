package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/cachekit/pkg/health"
	"github.com/dmitrymomot/cachekit/pkg/strategy"
)

var watchCmd = &cobra.Command{
	Use:   "watch FILE",
	Short: "Run the strategies from FILE and apply edits as they are saved",
	Long: `Build every strategy from FILE, start the rule engine and reload the
file whenever it changes. Added, changed and removed strategies are
reported as they are applied. Persisted strategies use the backend
selected by the backend flags, if any.

With --listen, health endpoints and Prometheus metrics are served on
/health/live, /health/ready and /metrics.

Example:
  cachectl watch strategies.yaml --redis redis://localhost:6379/0 --listen :9090 -v`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var watchListen string

func init() {
	watchCmd.Flags().StringVar(&watchListen, "listen", "", "serve health and metrics on this address, e.g. :9090")
	addBackendFlags(watchCmd)
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	file, err := strategy.LoadFile(args[0])
	if err != nil {
		return err
	}

	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	ctx, stop := signal.NotifyContext(base, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := newLogger()
	opts := append(file.Options(),
		strategy.WithLogger(log),
		strategy.WithVersion(version),
	)
	checks := health.Checks{}
	conn, err := openBackend(ctx)
	switch {
	case errors.Is(err, errNoBackend):
	case err != nil:
		return err
	default:
		defer conn.close()
		opts = append(opts, strategy.WithBackend(conn.backend))
		checks["backend"] = conn.check
	}

	m, err := strategy.New[string](nil, file.Strategies, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = m.Cleanup() }()
	if err := m.Start(ctx); err != nil {
		return err
	}
	checks["cache"] = m.Healthcheck()

	out := cmd.OutOrStdout()
	w, err := strategy.NewWatcher(m, args[0], strategy.WithOnReload(func(c strategy.Changes, err error) {
		if err != nil {
			fmt.Fprintf(out, "reload failed: %v\n", err)
		}
		printChanges(out, c)
	}))
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	fmt.Fprintf(out, "Watching %s: %s (default %s)\n", args[0], strings.Join(m.Names(), ", "), m.DefaultName())
	if watchListen == "" {
		<-ctx.Done()
		return nil
	}

	handler, err := newAdminHandler(m, checks, log)
	if err != nil {
		return err
	}
	return serve(ctx, watchListen, handler, log)
}

func printChanges(out io.Writer, c strategy.Changes) {
	if c.Empty() {
		return
	}
	for _, name := range c.Added {
		fmt.Fprintf(out, "+ %s\n", name)
	}
	for _, name := range c.Updated {
		fmt.Fprintf(out, "~ %s\n", name)
	}
	for _, name := range c.Removed {
		fmt.Fprintf(out, "- %s\n", name)
	}
	if c.Default != "" {
		fmt.Fprintf(out, "default is now %s\n", c.Default)
	}
}
