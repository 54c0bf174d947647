package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/trendloom/harvester/internal/domain"
)

// retryBaseDelay and retryMaxDelay bound the per-item exponential backoff
// for the offline/retry queue (spec: 1m -> 2m -> 4m -> ... capped 32m).
const (
	retryBaseDelay = time.Minute
	retryMaxDelay  = 32 * time.Minute
)

func backoffForAttempt(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := time.Duration(float64(retryBaseDelay) * math.Pow(2, float64(attempt)))
	if d > retryMaxDelay {
		return retryMaxDelay
	}
	return d
}

// RetryManager drains the durable job_queue table, replaying failed harvest
// tasks through the handler with per-item exponential backoff, and routes
// exhausted items to the permanent-failure log (DLQ).
type RetryManager struct {
	Queue       domain.JobQueueRepository
	Handler     HarvestTaskHandler
	DLQ         *DLQLogger
	MaxAttempts int
}

// NewRetryManager constructs a RetryManager with the spec's default max
// attempts when maxAttempts <= 0.
func NewRetryManager(queue domain.JobQueueRepository, handler HarvestTaskHandler, dlq *DLQLogger, maxAttempts int) *RetryManager {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &RetryManager{Queue: queue, Handler: handler, DLQ: dlq, MaxAttempts: maxAttempts}
}

// Defer persists a failed harvest task for later replay.
func (r *RetryManager) Defer(ctx domain.Context, payload domain.HarvestTaskPayload, kind domain.ErrorKind) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("op=redpanda.retry_manager.defer.marshal: %w", err)
	}
	item := domain.QueueItem{
		ID:            uuid.New().String(),
		Payload:       b,
		ErrorKind:     string(kind),
		Attempts:      0,
		NextAttemptAt: time.Now().UTC().Add(backoffForAttempt(0)),
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := r.Queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("op=redpanda.retry_manager.defer.enqueue: %w", err)
	}
	return nil
}

// DrainDue replays up to limit due items, returning how many were attempted.
func (r *RetryManager) DrainDue(ctx domain.Context, now time.Time, limit int) (int, error) {
	items, err := r.Queue.DueForRetry(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("op=redpanda.retry_manager.drain_due.list: %w", err)
	}

	for _, item := range items {
		if item.Attempts >= r.MaxAttempts {
			r.logPermanentFailure(ctx, item)
			continue
		}

		var payload domain.HarvestTaskPayload
		if err := json.Unmarshal(item.Payload, &payload); err != nil {
			slog.Error("retry queue item has malformed payload, dropping", slog.String("id", item.ID), slog.Any("error", err))
			_ = r.Queue.Delete(ctx, item.ID)
			continue
		}

		if err := r.Handler.HandleHarvestTask(ctx, payload); err != nil {
			next := now.Add(backoffForAttempt(item.Attempts + 1))
			if markErr := r.Queue.MarkAttempt(ctx, item.ID, next); markErr != nil {
				slog.Error("failed to record retry attempt", slog.String("id", item.ID), slog.Any("error", markErr))
			}
			continue
		}

		if err := r.Queue.Delete(ctx, item.ID); err != nil {
			slog.Error("failed to remove completed retry item", slog.String("id", item.ID), slog.Any("error", err))
		}
	}

	return len(items), nil
}

func (r *RetryManager) logPermanentFailure(ctx domain.Context, item domain.QueueItem) {
	if r.DLQ != nil {
		r.DLQ.LogPermanentFailure(ctx, item)
	}
	if err := r.Queue.Delete(ctx, item.ID); err != nil {
		slog.Error("failed to delete exhausted retry item", slog.String("id", item.ID), slog.Any("error", err))
	}
}

// Run drains due items on a fixed interval until ctx is cancelled.
func (r *RetryManager) Run(ctx context.Context, interval time.Duration, limit int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.DrainDue(ctx, time.Now().UTC(), limit); err != nil {
				slog.Error("retry queue drain failed", slog.Any("error", err))
			}
		}
	}
}
