package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/noc-backend/internal/app"
	"github.com/yungbote/noc-backend/internal/domain/noc"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

var (
	rollupResolution string

	rootCmd = &cobra.Command{
		Use:           "noc",
		Short:         "NOC backend: alert intake, incidents, playbooks and metrics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, realtime streams, scheduler and job worker",
		RunE:  func(cmd *cobra.Command, args []string) error { return runRole(cmd.Context(), app.RoleServe) },
	}
	workerCmd = &cobra.Command{
		Use:   "worker",
		Short: "Run the job worker only",
		RunE:  func(cmd *cobra.Command, args []string) error { return runRole(cmd.Context(), app.RoleWorker) },
	}
	rollupCmd = &cobra.Command{
		Use:   "rollup",
		Short: "Aggregate metric snapshots into one resolution tier and exit",
		RunE:  runRollup,
	}
	cleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Apply metric, heatmap and job retention once and exit",
		RunE:  runCleanup,
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Auto-migrate the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLogger(func(log *logger.Logger) error { return app.Migrate(log) })
		},
	}
)

func init() {
	rollupCmd.Flags().StringVar(&rollupResolution, "resolution", string(noc.Resolution5m), "target tier: 5m, 1h or 1d")
	rootCmd.AddCommand(serveCmd, workerCmd, rollupCmd, cleanupCmd, migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func withLogger(fn func(log *logger.Logger) error) error {
	log, err := app.NewLogger()
	if err != nil {
		return err
	}
	defer log.Sync()
	if err := fn(log); err != nil {
		log.Error("command failed", "error", err)
		return err
	}
	return nil
}

func withApp(ctx context.Context, role app.Role, fn func(a *app.App) error) error {
	return withLogger(func(log *logger.Logger) error {
		a, err := app.New(ctx, log, role)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(a)
	})
}

func runRole(ctx context.Context, role app.Role) error {
	return withApp(ctx, role, func(a *app.App) error { return a.Run(ctx) })
}

func runRollup(cmd *cobra.Command, args []string) error {
	res := noc.Resolution(rollupResolution)
	switch res {
	case noc.Resolution5m, noc.Resolution1h, noc.Resolution1d:
	default:
		return fmt.Errorf("invalid --resolution %q (want 5m, 1h or 1d)", rollupResolution)
	}
	return withApp(cmd.Context(), app.RoleTask, func(a *app.App) error {
		rep, err := a.RunRollup(cmd.Context(), res)
		if err != nil {
			return err
		}
		a.Log.Info("Rollup finished", "resolution", rep.Resolution, "skipped", rep.Skipped, "tenants", rep.Tenants, "rows", rep.Rows)
		return nil
	})
}

func runCleanup(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), app.RoleTask, func(a *app.App) error {
		rep, err := a.RunCleanup(cmd.Context())
		if err != nil {
			return err
		}
		a.Log.Info("Cleanup finished", "skipped", rep.Skipped, "deleted", rep.Deleted, "heatmap_clicks", rep.Clicks, "job_runs", rep.JobRuns, "job_events", rep.Events)
		return nil
	})
}
