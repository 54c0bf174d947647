package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/trendloom/harvester/internal/domain"
)

// JobQueueRepo persists the durable offline/retry queue (C13) using a
// minimal pgx pool.
type JobQueueRepo struct{ Pool PgxPool }

// NewJobQueueRepo constructs a JobQueueRepo with the given pool.
func NewJobQueueRepo(p PgxPool) *JobQueueRepo { return &JobQueueRepo{Pool: p} }

// Enqueue inserts a new queue item and returns its id.
func (r *JobQueueRepo) Enqueue(ctx domain.Context, item domain.QueueItem) (string, error) {
	tracer := otel.Tracer("repo.job_queue")
	ctx, span := tracer.Start(ctx, "job_queue.Enqueue")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.operation", "INSERT"), attribute.String("db.sql.table", "job_queue"))
	id := item.ID
	if id == "" {
		id = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if item.NextAttemptAt.IsZero() {
		item.NextAttemptAt = item.CreatedAt
	}
	q := `INSERT INTO job_queue (id, payload, error_kind, attempts, next_attempt_at, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6)`
	if _, err := r.Pool.Exec(ctx, q, id, item.Payload, item.ErrorKind, item.Attempts, item.NextAttemptAt, item.CreatedAt); err != nil {
		return "", fmt.Errorf("op=job_queue.enqueue: %w", err)
	}
	return id, nil
}

// DueForRetry returns up to limit queue items whose next_attempt_at has
// elapsed, oldest first.
func (r *JobQueueRepo) DueForRetry(ctx domain.Context, now time.Time, limit int) ([]domain.QueueItem, error) {
	tracer := otel.Tracer("repo.job_queue")
	ctx, span := tracer.Start(ctx, "job_queue.DueForRetry")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.sql.table", "job_queue"), attribute.Int("job_queue.limit", limit))
	q := `SELECT id, payload, error_kind, attempts, next_attempt_at, created_at
	      FROM job_queue WHERE next_attempt_at <= $1 ORDER BY next_attempt_at ASC LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, now, limit)
	if err != nil {
		return nil, fmt.Errorf("op=job_queue.due_for_retry: %w", err)
	}
	defer rows.Close()

	var out []domain.QueueItem
	for rows.Next() {
		var item domain.QueueItem
		if err := rows.Scan(&item.ID, &item.Payload, &item.ErrorKind, &item.Attempts, &item.NextAttemptAt, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("op=job_queue.due_for_retry_scan: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=job_queue.due_for_retry_rows: %w", err)
	}
	return out, nil
}

// MarkAttempt increments the attempt counter and reschedules the next
// attempt time for a queue item.
func (r *JobQueueRepo) MarkAttempt(ctx domain.Context, id string, nextAttemptAt time.Time) error {
	tracer := otel.Tracer("repo.job_queue")
	ctx, span := tracer.Start(ctx, "job_queue.MarkAttempt")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.operation", "UPDATE"), attribute.String("db.sql.table", "job_queue"))
	q := `UPDATE job_queue SET attempts = attempts + 1, next_attempt_at=$2 WHERE id=$1`
	tag, err := r.Pool.Exec(ctx, q, id, nextAttemptAt)
	if err != nil {
		return fmt.Errorf("op=job_queue.mark_attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=job_queue.mark_attempt: %w", domain.ErrNotFound)
	}
	return nil
}

// Delete removes a queue item, used once it either succeeds or is moved
// to the dead-letter sink.
func (r *JobQueueRepo) Delete(ctx domain.Context, id string) error {
	tracer := otel.Tracer("repo.job_queue")
	ctx, span := tracer.Start(ctx, "job_queue.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.operation", "DELETE"), attribute.String("db.sql.table", "job_queue"))
	q := `DELETE FROM job_queue WHERE id=$1`
	tag, err := r.Pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("op=job_queue.delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=job_queue.delete: %w", domain.ErrNotFound)
	}
	return nil
}
