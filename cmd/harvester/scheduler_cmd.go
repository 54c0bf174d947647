package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/trendloom/harvester/internal/adapter/httpserver"
	"github.com/trendloom/harvester/internal/adapter/observability"
	"github.com/trendloom/harvester/internal/adapter/repo/postgres"
	"github.com/trendloom/harvester/internal/app"
	"github.com/trendloom/harvester/internal/config"
	"github.com/trendloom/harvester/internal/runlog"
	"github.com/trendloom/harvester/internal/snapshot"
)

// newSchedulerCmd builds the `scheduler` subcommand: the always-on
// reconciliation loop, the lifecycle/decay sweeper, the stuck-run sweeper,
// and the admin HTTP surface (§6), all sharing the same process.
func newSchedulerCmd(cfg config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Run the always-on scheduler and admin HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.SetupLogger(cfg)
			slog.SetDefault(logger)
			observability.SetAppEnv(cfg.AppEnv)
			observability.InitMetrics()

			shutdownTracer, err := observability.SetupTracing(cfg)
			if err != nil {
				slog.Error("failed to setup tracing", slog.Any("error", err))
			}
			defer func() {
				if shutdownTracer != nil {
					_ = shutdownTracer(context.Background())
				}
			}()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			d, err := buildDeps(ctx, cfg)
			if err != nil {
				return fmt.Errorf("op=harvester.scheduler: %w", err)
			}
			defer d.close()

			if cfg.DataRetentionDays > 0 {
				cleanupSvc := postgres.NewCleanupService(d.pool, cfg.DataRetentionDays)
				go cleanupSvc.RunPeriodic(ctx, cfg.CleanupInterval)
			}

			sweeper := runlog.NewStuckRunSweeper(d.runLogs, cfg.StuckRunThreshold, cfg.ReconcileInterval)
			go sweeper.Run(ctx)

			decay := snapshot.NewDecaySweeper(d.trends, d.versions, cfg.DecayRateWeekly,
				cfg.InactiveDaysThreshold, cfg.ExpirationDaysThreshold, cfg.ArchiveEnabled, cfg.CleanupInterval)
			go decay.Run(ctx, platformKeys(d.weights))

			go d.sched.Run(ctx)

			dbCheck := app.BuildDBCheck(d.pool)
			srv := httpserver.NewServer(cfg, d.sources, d.settings, d.runLogs, d.trends, dbCheck)
			handler := app.BuildRouter(cfg, srv)

			httpSrv := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Port),
				Handler:           handler,
				ReadTimeout:       cfg.HTTPReadTimeout,
				WriteTimeout:      cfg.HTTPWriteTimeout,
				IdleTimeout:       cfg.HTTPIdleTimeout,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				slog.Info("admin http server starting", slog.Int("port", cfg.Port))
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				slog.Info("shutdown signal received")
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					slog.Error("admin http server error", slog.Any("error", err))
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		},
	}
	return cmd
}
