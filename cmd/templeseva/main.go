package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"templeseva_backend/internals/bootstrap"
	"templeseva_backend/internals/configs"
	database "templeseva_backend/internals/databases"
	"templeseva_backend/internals/features/donations/donations/service"
	authScheduler "templeseva_backend/internals/features/users/auth/scheduler"
	"templeseva_backend/internals/helpers/dbtime"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "templeseva",
		Short:         "Maintenance commands for the temple donation backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(cleanupCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Poll the gateway for stale PENDING donations",
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Run one reconciliation pass and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			max, _ := cmd.Flags().GetInt("max")
			olderThan, _ := cmd.Flags().GetDuration("older-than")
			maxAge, _ := cmd.Flags().GetDuration("max-age")

			return withContainer(func(ctx context.Context, c *bootstrap.Container) error {
				opts := c.Reconciler.Defaults()
				if max > 0 {
					opts.BatchSize = max
				}
				if cmd.Flags().Changed("older-than") {
					opts.OlderThan = olderThan
				}
				if cmd.Flags().Changed("max-age") {
					opts.MaxAge = maxAge
				}

				rep, err := c.Reconciler.Run(ctx, opts)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatReport(rep))
				return nil
			})
		},
	}
	run.Flags().Int("max", 0, "maximum donations to check (default RECONCILE_BATCH_SIZE)")
	run.Flags().Duration("older-than", 0, "only donations created at least this long ago (default RECONCILE_OLDER_THAN)")
	run.Flags().Duration("max-age", 0, "skip donations older than this, 0 for no limit (default RECONCILE_MAX_AGE)")

	cmd.AddCommand(run)
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(ctx context.Context, c *bootstrap.Container) error {
				if err := database.AutoMigrate(c.DB); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrated")
				return nil
			})
		},
	}
}

func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-tokens",
		Short: "Delete expired and used sign-in links and codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(ctx context.Context, c *bootstrap.Container) error {
				authScheduler.RunTokenCleanup(ctx, c.Tokens, c.Log)
				return nil
			})
		},
	}
}

func formatReport(rep service.Report) string {
	return fmt.Sprintf("checked=%d succeeded=%d failed=%d errors=%d", rep.Checked, rep.Succeeded, rep.Failed, rep.Errors)
}

// withContainer loads config, opens the database and cancels fn on SIGINT/SIGTERM.
func withContainer(fn func(ctx context.Context, c *bootstrap.Container) error) error {
	cfg := configs.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := dbtime.SetTimezone(cfg.Timezone); err != nil {
		return err
	}
	logger, err := configs.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.ConnectDB(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	c, err := bootstrap.Build(cfg, db, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	start := time.Now()
	err = fn(ctx, c)
	logger.Info("command finished", zap.Duration("took", time.Since(start)), zap.Error(err))
	return err
}
