package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventease/internal/config"
	"github.com/Togather-Foundation/eventease/internal/jobs"
	"github.com/Togather-Foundation/eventease/internal/storage/postgres"
	"github.com/Togather-Foundation/eventease/internal/storage/sqlite"
	"github.com/spf13/cobra"
)

type migrateFlags struct {
	backend     string
	databaseURL string
	sqlitePath  string
	steps       int
}

func newMigrateCommand() *cobra.Command {
	flags := &migrateFlags{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
		Long: `Apply or roll back the schema of the configured storage backend.

The backend and its location default to STORAGE_BACKEND, DATABASE_URL and
SQLITE_PATH. On postgres, "up" also creates River's job tables.`,
	}
	cmd.PersistentFlags().StringVar(&flags.backend, "backend", "", "storage backend: postgres or sqlite (default: $STORAGE_BACKEND or postgres)")
	cmd.PersistentFlags().StringVar(&flags.databaseURL, "database-url", "", "postgres connection URL (default: $DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&flags.sqlitePath, "sqlite-path", "", "sqlite database file (default: $SQLITE_PATH or eventease.db)")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.resolve(); err != nil {
				return err
			}
			if err := migrateUp(cmd.Context(), flags); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s migrations applied\n", flags.backend)
			return nil
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.resolve(); err != nil {
				return err
			}
			if flags.steps <= 0 {
				return fmt.Errorf("--steps must be positive")
			}
			if err := migrateDown(flags); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d %s migration(s)\n", flags.steps, flags.backend)
			return nil
		},
	}
	down.Flags().IntVar(&flags.steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(up, down)
	return cmd
}

// resolve fills unset flags from the environment.
func (f *migrateFlags) resolve() error {
	if f.backend == "" {
		f.backend = envOr("STORAGE_BACKEND", config.BackendPostgres)
	}
	f.backend = strings.ToLower(f.backend)
	if f.databaseURL == "" {
		f.databaseURL = os.Getenv("DATABASE_URL")
	}
	if f.sqlitePath == "" {
		f.sqlitePath = envOr("SQLITE_PATH", "eventease.db")
	}

	switch f.backend {
	case config.BackendPostgres:
		if f.databaseURL == "" {
			return fmt.Errorf("--database-url or DATABASE_URL is required for postgres")
		}
	case config.BackendSQLite:
	default:
		return fmt.Errorf("unsupported backend %q", f.backend)
	}
	return nil
}

func migrateUp(ctx context.Context, f *migrateFlags) error {
	if f.backend == config.BackendSQLite {
		return sqlite.MigrateUp(f.sqlitePath)
	}
	if err := postgres.MigrateUp(f.databaseURL); err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	pool, err := postgres.OpenPool(ctx, f.databaseURL, postgres.PoolConfig{MaxConns: 2})
	if err != nil {
		return err
	}
	defer pool.Close()
	return jobs.MigrateRiver(ctx, pool)
}

func migrateDown(f *migrateFlags) error {
	if f.backend == config.BackendSQLite {
		return sqlite.MigrateDown(f.sqlitePath, f.steps)
	}
	return postgres.MigrateDown(f.databaseURL, f.steps)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
