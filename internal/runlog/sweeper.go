package runlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/trendloom/harvester/internal/domain"
)

// StuckRunSweeper periodically marks run_log rows that have been in the
// running state for longer than maxRunningAge as failed, so a crashed
// worker never leaves a run_log row permanently "running". The scheduler's
// overlap check is an in-memory map and does not read run_log.
type StuckRunSweeper struct {
	runs          domain.RunLogRepository
	maxRunningAge time.Duration
	interval      time.Duration
}

// NewStuckRunSweeper constructs a sweeper over the given repository.
func NewStuckRunSweeper(runs domain.RunLogRepository, maxRunningAge, interval time.Duration) *StuckRunSweeper {
	if runs == nil {
		return nil
	}
	if maxRunningAge <= 0 {
		maxRunningAge = 30 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &StuckRunSweeper{runs: runs, maxRunningAge: maxRunningAge, interval: interval}
}

// Run blocks, sweeping on every tick until ctx is cancelled.
func (s *StuckRunSweeper) Run(ctx context.Context) {
	if s == nil || s.runs == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("stuck run sweeper stopping")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *StuckRunSweeper) sweepOnce(ctx context.Context) {
	tracer := otel.Tracer("runlog.sweeper")
	ctx, span := tracer.Start(ctx, "StuckRunSweeper.sweepOnce")
	defer span.End()

	cutoff := time.Now().Add(-s.maxRunningAge)
	span.SetAttributes(attribute.Float64("runlog.max_running_age_seconds", s.maxRunningAge.Seconds()))

	stuck, err := s.runs.ListRunning(ctx, cutoff)
	if err != nil {
		span.RecordError(err)
		slog.Error("stuck run sweep failed to list running run logs", slog.Any("error", err))
		return
	}

	markedFailed := 0
	for _, rl := range stuck {
		runCtx, runSpan := tracer.Start(ctx, "StuckRunSweeper.markFailed")
		runSpan.SetAttributes(attribute.String("run_log.id", rl.ID), attribute.String("run_log.platform", string(rl.Platform)))

		ended := time.Now().UTC()
		rl.Status = domain.RunFailed
		rl.EndedAt = &ended
		rl.DurationSeconds = ended.Sub(rl.StartedAt).Seconds()
		rl.ErrorMessage = fmt.Sprintf("run exceeded maximum running age %v; marked failed by sweeper", s.maxRunningAge)
		if err := s.runs.Update(runCtx, rl); err != nil {
			runSpan.RecordError(err)
			slog.Error("stuck run sweep failed to update run log", slog.String("run_log_id", rl.ID), slog.Any("error", err))
		} else {
			markedFailed++
		}
		runSpan.End()
	}

	span.SetAttributes(
		attribute.Int("runlog.total_checked", len(stuck)),
		attribute.Int("runlog.total_marked_failed", markedFailed),
	)
}
