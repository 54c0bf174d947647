package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/trendloom/harvester/internal/domain"
)

// MetricRepo persists metric rows using a minimal pgx pool.
type MetricRepo struct{ Pool PgxPool }

// NewMetricRepo constructs a MetricRepo with the given pool.
func NewMetricRepo(p PgxPool) *MetricRepo { return &MetricRepo{Pool: p} }

// CreateBatch inserts every metric in one transaction, generating ids for
// any entry that doesn't already have one.
func (r *MetricRepo) CreateBatch(ctx domain.Context, metrics []domain.Metric) error {
	if len(metrics) == 0 {
		return nil
	}
	tracer := otel.Tracer("repo.metrics")
	ctx, span := tracer.Start(ctx, "metrics.CreateBatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "metric"),
		attribute.Int("metric.batch_size", len(metrics)),
	)

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("op=metric.create_batch.begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	const q = `INSERT INTO metric (id, trend_version_id, type, value, unit, collected_at, metadata)
	           VALUES ($1,$2,$3,$4,$5,$6,$7)`
	for _, m := range metrics {
		id := m.ID
		if id == "" {
			id = uuid.New().String()
		}
		meta, err := json.Marshal(m.Metadata)
		if err != nil {
			return fmt.Errorf("op=metric.create_batch.marshal: %w", err)
		}
		if _, err := tx.Exec(ctx, q, id, m.TrendVersionID, m.Type, m.Value, m.Unit, m.CollectedAt, meta); err != nil {
			return fmt.Errorf("op=metric.create_batch.exec: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=metric.create_batch.commit: %w", err)
	}
	committed = true
	return nil
}
