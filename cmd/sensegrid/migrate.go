package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tronix365/sensegrid/internal/infrastructure/config"
	"github.com/tronix365/sensegrid/internal/infrastructure/database"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := openConfiguredDB(resolveConfigPath(*configPath))
				if err != nil {
					return err
				}
				defer db.Close() //nolint:errcheck // process exits next

				if err := db.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("running migrations: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := openConfiguredDB(resolveConfigPath(*configPath))
				if err != nil {
					return err
				}
				defer db.Close() //nolint:errcheck // process exits next

				if err := db.MigrateDown(cmd.Context()); err != nil {
					return fmt.Errorf("rolling back migration: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "rolled back one migration")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := openConfiguredDB(resolveConfigPath(*configPath))
				if err != nil {
					return err
				}
				defer db.Close() //nolint:errcheck // process exits next

				applied, pending, err := db.GetMigrationStatus(cmd.Context())
				if err != nil {
					return fmt.Errorf("reading migration status: %w", err)
				}
				return printMigrationStatus(cmd.OutOrStdout(), db.Dialect(), applied, pending)
			},
		},
	)
	return cmd
}

// openConfiguredDB loads config from path and opens the database it names.
func openConfiguredDB(path string) (*database.DB, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return openDatabase(cfg)
}

func openDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Driver:       cfg.Database.Driver,
		Path:         cfg.Database.Path,
		DSN:          cfg.Database.DSN,
		WALMode:      cfg.Database.WALMode,
		BusyTimeout:  cfg.Database.BusyTimeout,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func printMigrationStatus(w io.Writer, dialect database.Dialect, applied []database.MigrationRecord, pending []database.Migration) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0) //nolint:mnd // column layout
	fmt.Fprintf(tw, "dialect: %s\n\n", dialect)
	fmt.Fprintln(tw, "VERSION\tSTATE\tDETAIL")
	for _, r := range applied {
		fmt.Fprintf(tw, "%s\tapplied\t%s\n", r.Version, r.AppliedAt.UTC().Format("2006-01-02 15:04:05"))
	}
	for _, m := range pending {
		fmt.Fprintf(tw, "%s\tpending\t%s\n", m.Version, m.Name)
	}
	return tw.Flush()
}
