package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"campusevents/internal/auth"
	"campusevents/internal/config"
	"campusevents/internal/events"
	"campusevents/internal/seed"
	"campusevents/internal/store"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "campusctl",
		Short:        "Operate the campus events database",
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCmd(), newSeedCmd(), newExportCmd(), newHashPasswordCmd())
	return root
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// openDB connects with the environment's settings and applies migrations.
func openDB() (config.App, *store.DB, *slog.Logger, error) {
	cfg := config.Load()
	logger := cfg.Logger()
	db, err := store.NewDB(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("connect: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return cfg, nil, nil, err
	}
	return cfg, db, logger, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, _, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the guest and admin accounts and the welcome event when missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, logger, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			svc := events.NewService(events.NewRepository(db), nil, events.WithLogger(logger))
			return seed.Run(ctxOf(cmd), auth.NewRepository(db), svc, cfg.AdminPassword, time.Now(), logger)
		},
	}
}

func newExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all events as CSV",
		Long: `Write the events report as CSV, in the same format as the admin download.

Examples:
  campusctl export > report.csv
  campusctl export -o campus_events_report.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, logger, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := ctxOf(cmd)
			admin, err := auth.NewRepository(db).FindByUsername(ctx, seed.AdminUsername)
			if err != nil {
				return err
			}
			if admin == nil {
				return fmt.Errorf("no %q account, run campusctl seed first", seed.AdminUsername)
			}
			svc := events.NewService(events.NewRepository(db), nil, events.WithLogger(logger))
			data, err := svc.ExportCSV(ctx, auth.IdentityOf(admin))
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			_, err = w.Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash suitable for the users table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
