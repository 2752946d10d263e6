// ABOUTME: CLI command for copying data between storage backends.
// ABOUTME: Moves every user, raw metric, average and anomaly from SQLite to Postgres or back.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/bloom/internal/config"
	"github.com/harperreed/bloom/internal/storage"
)

var (
	migrateFrom     string
	migrateTo       string
	migrateSQLite   string
	migratePostgres string
	migrateDryRun   bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy data between storage backends",
	Long: `Copy all data from one storage backend to another.

The destination should be empty; duplicate rows cause an error.
Connection settings default to storage.sqlite_path and
storage.postgres_dsn from the config.

USAGE:

  bloom migrate --from sqlite --to postgres --dry-run
  bloom migrate --from sqlite --to postgres --postgres-dsn postgres://bloom@db/bloom
  bloom migrate --from postgres --to sqlite --sqlite-path ./bloom.db`,
	Annotations: map[string]string{skipStore: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateFrom == migrateTo {
			return fmt.Errorf("--from and --to must differ")
		}

		src, err := openBackend(migrateFrom)
		if err != nil {
			return fmt.Errorf("open source: %w", err)
		}
		defer src.Close()

		out := cmd.OutOrStdout()
		if migrateDryRun {
			users, err := src.ListUsers(cmd.Context())
			if err != nil {
				return fmt.Errorf("list source users: %w", err)
			}
			color.New(color.FgYellow).Fprintln(out, "Dry run mode - no changes will be made")
			fmt.Fprintf(out, "Would migrate %d users from %s to %s\n", len(users), migrateFrom, migrateTo)
			return nil
		}

		dst, err := openBackend(migrateTo)
		if err != nil {
			return fmt.Errorf("open destination: %w", err)
		}
		defer dst.Close()

		summary, err := storage.MigrateData(cmd.Context(), src, dst)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		color.New(color.FgGreen).Fprintf(out, "✓ Migrated %s → %s\n", migrateFrom, migrateTo)
		fmt.Fprintf(out, "  users %d, devices %d, intraday %d\n", summary.Users, summary.Devices, summary.IntradaySamples)
		fmt.Fprintf(out, "  activity %d, sleep %d, health %d\n", summary.Activity, summary.Sleep, summary.HealthMetrics)
		fmt.Fprintf(out, "  averages %d, history %d, anomalies %d\n", summary.Averages, summary.History, summary.AnomalyEvents)
		return nil
	},
}

// openBackend opens backend with the flag overrides applied to the loaded config.
func openBackend(backend string) (storage.Store, error) {
	c := *cfg
	c.Storage = config.StorageConfig{
		Backend:     backend,
		SQLitePath:  cfg.Storage.SQLitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
	}
	if migrateSQLite != "" {
		c.Storage.SQLitePath = migrateSQLite
	}
	if migratePostgres != "" {
		c.Storage.PostgresDSN = migratePostgres
	}
	return c.OpenStorage()
}

func init() {
	migrateCmd.Flags().StringVar(&migrateFrom, "from", "sqlite", "source backend (sqlite or postgres)")
	migrateCmd.Flags().StringVar(&migrateTo, "to", "postgres", "destination backend (sqlite or postgres)")
	migrateCmd.Flags().StringVar(&migrateSQLite, "sqlite-path", "", "SQLite file (default: storage.sqlite_path)")
	migrateCmd.Flags().StringVar(&migratePostgres, "postgres-dsn", "", "Postgres DSN (default: storage.postgres_dsn)")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "count source users without copying")
	rootCmd.AddCommand(migrateCmd)
}
