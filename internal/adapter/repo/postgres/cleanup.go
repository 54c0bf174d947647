package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CleanupService enforces data retention by purging archived trends (and
// their history) and stale run_log/job_queue rows past the retention
// window.
type CleanupService struct {
	Pool          *pgxpool.Pool
	RetentionDays int
}

// NewCleanupService creates a new cleanup service.
func NewCleanupService(pool *pgxpool.Pool, retentionDays int) *CleanupService {
	if retentionDays <= 0 {
		retentionDays = 90 // default 90 days
	}
	return &CleanupService{Pool: pool, RetentionDays: retentionDays}
}

// CleanupOldData removes archived trends (and their versions/metrics),
// non-running run_log rows, and all job_queue rows older than the retention
// period.
func (s *CleanupService) CleanupOldData(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -s.RetentionDays)

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cleanup begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var deletedMetrics int64
	err = tx.QueryRow(ctx, `
		WITH victims AS (
			DELETE FROM metric
			WHERE trend_version_id IN (
				SELECT tv.id FROM trend_version tv
				JOIN trend t ON t.id = tv.trend_id
				WHERE t.status = 'archived' AND t.last_seen_at < $1
			)
			RETURNING 1
		)
		SELECT count(*) FROM victims
	`, cutoff).Scan(&deletedMetrics)
	if err != nil {
		slog.Debug("no metrics to delete", slog.Any("error", err))
	}

	var deletedVersions int64
	err = tx.QueryRow(ctx, `
		WITH victims AS (
			DELETE FROM trend_version
			WHERE trend_id IN (
				SELECT id FROM trend WHERE status = 'archived' AND last_seen_at < $1
			)
			RETURNING 1
		)
		SELECT count(*) FROM victims
	`, cutoff).Scan(&deletedVersions)
	if err != nil {
		slog.Debug("no trend versions to delete", slog.Any("error", err))
	}

	var deletedTrends int64
	err = tx.QueryRow(ctx, `
		WITH victims AS (
			DELETE FROM trend WHERE status = 'archived' AND last_seen_at < $1
			RETURNING 1
		)
		SELECT count(*) FROM victims
	`, cutoff).Scan(&deletedTrends)
	if err != nil {
		slog.Debug("no trends to delete", slog.Any("error", err))
	}

	var deletedRunLogs int64
	err = tx.QueryRow(ctx, `
		WITH victims AS (
			DELETE FROM run_log WHERE status != 'running' AND started_at < $1
			RETURNING 1
		)
		SELECT count(*) FROM victims
	`, cutoff).Scan(&deletedRunLogs)
	if err != nil {
		slog.Debug("no run logs to delete", slog.Any("error", err))
	}

	var deletedQueueItems int64
	err = tx.QueryRow(ctx, `
		WITH victims AS (
			DELETE FROM job_queue WHERE created_at < $1
			RETURNING 1
		)
		SELECT count(*) FROM victims
	`, cutoff).Scan(&deletedQueueItems)
	if err != nil {
		slog.Debug("no queue items to delete", slog.Any("error", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("cleanup commit: %w", err)
	}

	slog.Info("data cleanup completed",
		slog.Int64("deleted_trends", deletedTrends),
		slog.Int64("deleted_trend_versions", deletedVersions),
		slog.Int64("deleted_metrics", deletedMetrics),
		slog.Int64("deleted_run_logs", deletedRunLogs),
		slog.Int64("deleted_queue_items", deletedQueueItems),
		slog.Time("cutoff", cutoff),
	)

	return nil
}

// RunPeriodic starts a periodic cleanup job.
func (s *CleanupService) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour // daily by default
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.CleanupOldData(ctx); err != nil {
		slog.Error("initial cleanup failed", slog.Any("error", err))
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup service stopping")
			return
		case <-ticker.C:
			if err := s.CleanupOldData(ctx); err != nil {
				slog.Error("periodic cleanup failed", slog.Any("error", err))
			}
		}
	}
}
