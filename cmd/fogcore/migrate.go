package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nerrad567/fog-access-core/internal/infrastructure/config"
	"github.com/nerrad567/fog-access-core/internal/infrastructure/database"
	"github.com/nerrad567/fog-access-core/migrations"
)

func newMigrateCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQLite schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd.Context(), *configPath, func(ctx context.Context, db *database.DB) error {
					if err := db.Migrate(ctx, migrations.FS); err != nil {
						return fmt.Errorf("running migrations: %w", err)
					}
					fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd.Context(), *configPath, func(ctx context.Context, db *database.DB) error {
					v, err := db.MigrateDown(ctx, migrations.FS)
					if err != nil {
						return fmt.Errorf("rolling back migration: %w", err)
					}
					if v == "" {
						fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
						return nil
					}
					fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s\n", v)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(cmd.Context(), *configPath, func(ctx context.Context, db *database.DB) error {
					return printMigrationStatus(ctx, cmd.OutOrStdout(), db)
				})
			},
		},
	)
	return cmd
}

// withDatabase loads the config, opens the database it names and hands it
// to fn. Migration commands never touch MQTT, InfluxDB or the backend.
func withDatabase(ctx context.Context, flag string, fn func(context.Context, *database.DB) error) error {
	cfg, err := config.Load(getConfigPath(flag))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(ctx, database.Config{
		Path:         cfg.Database.Path,
		WALMode:      cfg.Database.WALMode,
		BusyTimeout:  cfg.Database.BusyTimeout,
		QueryTimeout: cfg.Database.QueryTimeout(),
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-mostly CLI path, close error is not actionable

	return fn(ctx, db)
}

func printMigrationStatus(ctx context.Context, w io.Writer, db *database.DB) error {
	applied, pending, err := db.MigrationStatus(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}

	for _, m := range applied {
		fmt.Fprintf(w, "applied  %s  %s\n", m.Version, m.AppliedAt.Format(database.TimeFormat))
	}
	for _, m := range pending {
		fmt.Fprintf(w, "pending  %s  %s\n", m.Version, m.Name)
	}
	if len(applied) == 0 && len(pending) == 0 {
		fmt.Fprintln(w, "no migrations found")
	}
	return nil
}
