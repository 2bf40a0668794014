package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/BradenHooton/authgate/internal/app"
	"github.com/BradenHooton/authgate/internal/config"
	"github.com/BradenHooton/authgate/internal/database"
)

func main() {
	var (
		verbose bool
		timeout time.Duration
	)

	root := &cobra.Command{
		Use:           "authctl",
		Short:         "Operator tooling for the authgate database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Overall command timeout")

	newLogger := func() *slog.Logger {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	connect := func(ctx context.Context, logger *slog.Logger) (*config.Config, *database.DB, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		db, err := database.NewConnection(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		return cfg, db, nil
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			logger := newLogger()
			_, db, err := connect(ctx, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			return db.Migrate(ctx)
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			_, db, err := connect(ctx, newLogger())
			if err != nil {
				return err
			}
			defer db.Close()

			version, err := db.MigrationStatus(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		},
	}
	migrateCmd.AddCommand(statusCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run every retention and expiry sweep once and print the counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			logger := newLogger()
			cfg, db, err := connect(ctx, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			core, err := app.New(ctx, cfg, db, nil, logger)
			if err != nil {
				return err
			}
			defer core.Close()

			report, sweepErr := core.Maintenance.RunAll(ctx)
			if report != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			}
			return sweepErr
		},
	}

	root.AddCommand(migrateCmd, sweepCmd)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
