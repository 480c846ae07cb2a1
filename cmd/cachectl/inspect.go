package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/cachekit/pkg/cache"
	"github.com/dmitrymomot/cachekit/pkg/persist"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show a persisted cache snapshot",
	Long: `Load the snapshot a strategy persisted and print its statistics and entries.

Entries are listed in eviction order, next victim first.

Examples:
  cachectl inspect --redis redis://localhost:6379/0 --strategy api
  cachectl inspect --postgres postgres://localhost/app --strategy static --snapshot-version 2 --json`,
	Args: cobra.NoArgs,
	RunE: runInspect,
}

var (
	inspectStrategy string
	inspectJSON     bool
	inspectTimeout  time.Duration
)

func init() {
	inspectCmd.Flags().StringVarP(&inspectStrategy, "strategy", "s", "default", "strategy name")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "print the raw snapshot as JSON")
	inspectCmd.Flags().DurationVar(&inspectTimeout, "timeout", 10*time.Second, "backend timeout")
	addBackendFlags(inspectCmd)
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, _ []string) error {
	ctx, cancel := contextWithTimeout(cmd, inspectTimeout)
	defer cancel()

	conn, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer conn.close()

	key := cache.SnapshotKey(inspectStrategy, version)
	data, err := conn.backend.Load(ctx, key)
	if errors.Is(err, persist.ErrNotFound) {
		return fmt.Errorf("no snapshot under %q", key)
	}
	if err != nil {
		return err
	}

	snap, err := cache.DecodeSnapshot(data)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if inspectJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	fmt.Fprintf(out, "Key:       %s\n", key)
	fmt.Fprintf(out, "Store:     %s (version %s)\n", snap.Store, snap.Version)
	fmt.Fprintf(out, "Writer:    %s\n", snap.Writer)
	fmt.Fprintf(out, "Saved:     %s (%s)\n", snap.SavedAt.Format(time.RFC3339), humanize.Time(snap.SavedAt))
	fmt.Fprintf(out, "Entries:   %d\n", snap.Stats.Entries)
	fmt.Fprintf(out, "Size:      %s of %s\n", humanize.IBytes(uint64(snap.Stats.SizeBytes)), budget(snap.Stats.MaxSizeBytes))
	fmt.Fprintf(out, "Hit rate:  %.1f%% (%d hits, %d misses)\n", snap.Stats.HitRatePercent, snap.Stats.Hits, snap.Stats.Misses)
	fmt.Fprintf(out, "Evictions: %d\n\n", snap.Stats.Evictions)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tSIZE\tHITS\tAGE\tTTL\tFLAGS")
	for _, e := range snap.Entries {
		ttl := "never"
		if e.TTL >= 0 {
			ttl = e.TTL.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			e.Key, humanize.IBytes(uint64(len(e.Data))), e.Hits,
			snap.SavedAt.Sub(e.CreatedAt).Round(time.Second), ttl, flags(e))
	}
	return w.Flush()
}

func budget(n int64) string {
	if n <= 0 {
		return "unlimited"
	}
	return humanize.IBytes(uint64(n))
}

func flags(e cache.SnapshotEntry) string {
	var f string
	if e.Compressed {
		f += "z"
	}
	if e.Stale {
		f += "s"
	}
	if f == "" {
		return "-"
	}
	return f
}
