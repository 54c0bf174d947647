package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/trendloom/harvester/internal/adapter/observability"
	"github.com/trendloom/harvester/internal/adapter/queue/redpanda"
	"github.com/trendloom/harvester/internal/config"
)

// newWorkerCmd builds the `worker` subcommand: the offline retry-queue
// drainer (C13) plus, when --consume-kafka is passed, a Redpanda consumer
// dispatching harvest tasks published by other processes. Named after the
// scheduler/queue vocabulary (apscheduler, rq, celery, cron) a deployment
// might otherwise reach for, since this process plays the same "detached
// task runner" role.
func newWorkerCmd(cfg config.Config) *cobra.Command {
	var consumeKafka bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Drain the offline retry queue and consume dispatched harvest tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.SetupLogger(cfg)
			slog.SetDefault(logger)
			observability.SetAppEnv(cfg.AppEnv)
			observability.InitMetrics()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			d, err := buildDeps(ctx, cfg)
			if err != nil {
				return fmt.Errorf("op=harvester.worker: %w", err)
			}
			defer d.close()

			dlq := redpanda.NewDLQLogger(nil, "")
			d.retryManager.DLQ = dlq

			if !consumeKafka {
				slog.Info("worker draining retry queue only; pass --consume-kafka to also run the Redpanda consumer")
				d.retryManager.Run(ctx, cfg.ReconcileInterval, cfg.HarvestLimit)
				return nil
			}

			consumer, err := redpanda.NewConsumer(cfg.KafkaBrokers, cfg.RetryTopic, "harvester-worker", d.sched, d.retryManager)
			if err != nil {
				return fmt.Errorf("op=harvester.worker.consumer: %w", err)
			}
			defer func() {
				if err := consumer.Close(); err != nil {
					slog.Error("failed to close kafka consumer", slog.Any("error", err))
				}
			}()

			go d.retryManager.Run(ctx, cfg.ReconcileInterval, cfg.HarvestLimit)
			consumer.Run(ctx)
			return nil
		},
	}

	cmd.Flags().BoolVar(&consumeKafka, "consume-kafka", false, "also consume harvest tasks dispatched over Redpanda/Kafka")
	return cmd
}
