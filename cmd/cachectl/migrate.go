package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/cachekit/pkg/db"
	"github.com/dmitrymomot/cachekit/pkg/persist"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the Postgres snapshot table",
	Long: `Apply the goose migrations that create the cache_snapshots table.

Example:
  cachectl migrate --postgres postgres://localhost/app`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

var (
	migratePostgres string
	migrateTable    string
)

func init() {
	migrateCmd.Flags().StringVar(&migratePostgres, "postgres", "", "Postgres URL")
	migrateCmd.Flags().StringVar(&migrateTable, "table", "cachekit_migrations", "goose version table")
	_ = migrateCmd.MarkFlagRequired("postgres")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	if migratePostgres == "" {
		return errors.New("--postgres is required")
	}

	ctx, cancel := contextWithTimeout(cmd, time.Minute)
	defer cancel()

	pool, err := db.Connect(ctx, db.DefaultConfig(migratePostgres))
	if err != nil {
		return err
	}
	defer pool.Close()

	return db.Migrate(ctx, pool, persist.Migrations, persist.MigrationsDir, migrateTable, newLogger())
}

func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, d)
}
