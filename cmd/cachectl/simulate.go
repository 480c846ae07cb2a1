package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/cachekit/pkg/cache"
	"github.com/dmitrymomot/cachekit/pkg/persist"
	"github.com/dmitrymomot/cachekit/pkg/strategy"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate FILE",
	Short: "Replay a random workload against a strategy file",
	Long: `Build every strategy from FILE in memory and run a random mix of
cache-aside reads, writes, deletes and prefix invalidations against them.
Invalidation rules run every --rules-every operations.

Example:
  cachectl simulate strategies.yaml --ops 100000 --keys 5000 --seed 7`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

var (
	simOps        int
	simKeys       int
	simRulesEvery int
	simSeed       uint64
	simMinValue   int
	simMaxValue   int
)

func init() {
	simulateCmd.Flags().IntVar(&simOps, "ops", 10000, "number of operations per strategy")
	simulateCmd.Flags().IntVar(&simKeys, "keys", 1000, "size of the key space")
	simulateCmd.Flags().IntVar(&simRulesEvery, "rules-every", 1000, "run invalidation rules every N operations, 0 disables")
	simulateCmd.Flags().Uint64Var(&simSeed, "seed", 1, "random seed")
	simulateCmd.Flags().IntVar(&simMinValue, "min-value", 64, "smallest generated value in bytes")
	simulateCmd.Flags().IntVar(&simMaxValue, "max-value", 4096, "largest generated value in bytes")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	file, err := strategy.LoadFile(args[0])
	if err != nil {
		return err
	}
	if simMaxValue < simMinValue {
		return fmt.Errorf("--max-value %d is below --min-value %d", simMaxValue, simMinValue)
	}

	opts := append(file.Options(),
		strategy.WithLogger(newLogger()),
		strategy.WithBackend(persist.NewMemory()),
		strategy.WithRuleSchedule(""),
		strategy.WithVersion(version),
	)
	m, err := strategy.New[string](nil, file.Strategies, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = m.Cleanup() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rng := rand.New(rand.NewPCG(simSeed, simSeed^0x9e3779b97f4a7c15))
	started := time.Now()
	var fetches int

	for _, name := range m.Names() {
		store, err := m.Cache(name)
		if err != nil {
			return err
		}
		for i := range simOps {
			key := "k:" + strconv.Itoa(zipf(rng, simKeys))
			switch p := rng.IntN(100); {
			case p < 70:
				_, err := store.GetOrSet(ctx, key, func(context.Context) (string, error) {
					fetches++
					return value(rng), nil
				}, 0)
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
			case p < 90:
				err := store.Set(ctx, key, value(rng), 0)
				if err != nil && !errors.Is(err, cache.ErrCapacity) {
					return fmt.Errorf("%s: %w", name, err)
				}
			case p < 97:
				store.Delete(key)
			default:
				store.InvalidatePrefix("k:" + strconv.Itoa(rng.IntN(10)))
			}

			if simRulesEvery > 0 && (i+1)%simRulesEvery == 0 {
				m.RunRules(ctx)
			}
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Ran %d operations per strategy in %s, %d fetches\n\n",
		simOps, time.Since(started).Round(time.Millisecond), fetches)

	stats := m.Stats()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STRATEGY\tEVICTION\tENTRIES\tSIZE\tBUDGET\tHIT RATE\tEVICTIONS")
	for _, name := range m.Names() {
		s := stats[name]
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%.1f%%\t%d\n",
			name, s.Strategy.Eviction, s.Cache.Entries,
			humanize.IBytes(uint64(s.Cache.SizeBytes)), budget(s.Cache.MaxSizeBytes),
			s.Cache.HitRatePercent, s.Cache.Evictions)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	rs := m.RuleStats()
	fmt.Fprintf(out, "\nRules: %d runs, %d evicted, %d refreshed, %d compressed\n",
		rs.Runs, rs.Evicted, rs.Refreshed, rs.Compressed)
	return nil
}

// zipf picks a key index skewed towards small numbers, like real traffic.
func zipf(rng *rand.Rand, n int) int {
	u := rng.Float64()
	return int(float64(n) * u * u * u)
}

func value(rng *rand.Rand) string {
	n := simMinValue
	if simMaxValue > simMinValue {
		n += rng.IntN(simMaxValue - simMinValue + 1)
	}
	return strings.Repeat(string(rune('a'+rng.IntN(26))), n)
}
