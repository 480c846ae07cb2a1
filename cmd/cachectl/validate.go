package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/cachekit/pkg/strategy"
)

var validateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Check a strategy file",
	Long: `Parse and validate a YAML strategy file and print the strategies it defines.

The command exits with a non-zero status when any strategy or rule is invalid.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	file, err := strategy.LoadFile(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Default:  %s\n", file.Default)
	if file.Schedule != "" {
		fmt.Fprintf(out, "Schedule: %s\n", file.Schedule)
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTTL\tMAX SIZE\tEVICTION\tCOMPRESS\tPERSIST\tRULES")
	for _, s := range file.Strategies {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%t\t%d\n",
			s.Name, s.TTL, humanize.IBytes(uint64(s.MaxSizeBytes)), s.Eviction,
			s.Compress, s.Persist, len(s.Rules))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if verbose {
		for _, s := range file.Strategies {
			for _, r := range s.Rules {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", s.Name, r)
			}
		}
	}
	return nil
}
