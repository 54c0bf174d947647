package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/trendloom/harvester/internal/adapter/observability"
	"github.com/trendloom/harvester/internal/config"
	"github.com/trendloom/harvester/internal/domain"
)

// newRunCmd builds the `run` subcommand: a single-platform harvest,
// one-shot or looped on a fixed interval, bypassing the full scheduler
// reconciliation loop. Intended for manual triggers and cron-driven
// deployments that own their own scheduling.
func newRunCmd(cfg config.Config) *cobra.Command {
	var (
		platform string
		once     bool
		limit    int
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Harvest trends for one platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			if platform == "" {
				return fmt.Errorf("op=harvester.run: %w: --source is required", domain.ErrInvalidArgument)
			}
			p := domain.Platform(platform)
			if !p.Valid() {
				return fmt.Errorf("op=harvester.run: %w: unsupported platform %q", domain.ErrInvalidArgument, platform)
			}

			logger := observability.SetupLogger(cfg)
			slog.SetDefault(logger)
			observability.SetAppEnv(cfg.AppEnv)
			observability.InitMetrics()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			d, err := buildDeps(ctx, cfg)
			if err != nil {
				return fmt.Errorf("op=harvester.run: %w", err)
			}
			defer d.close()

			payload := domain.HarvestTaskPayload{Platform: p, Limit: limit}
			if err := d.sched.RunOnce(ctx, payload); err != nil {
				return fmt.Errorf("op=harvester.run: %w", err)
			}
			if once {
				return nil
			}

			if interval <= 0 {
				interval = time.Duration(cfg.DefaultFrequencyHours * float64(time.Hour))
			}
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := d.sched.RunOnce(ctx, payload); err != nil {
						slog.Error("run failed", slog.String("platform", platform), slog.Any("error", err))
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&platform, "source", "", "platform to harvest (tiktok, instagram, linkedin, facebook, youtube, x)")
	cmd.Flags().BoolVar(&once, "once", false, "run a single harvest and exit")
	cmd.Flags().IntVar(&limit, "limit", 0, "override the discovery limit (0 uses the configured default)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "loop interval when --once is not set (defaults to DEFAULT_FREQUENCY_HOURS)")

	return cmd
}
