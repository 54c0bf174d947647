package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/trendloom/harvester/internal/domain"
)

// TrendRepo persists and loads trend rows using a minimal pgx pool.
type TrendRepo struct{ Pool PgxPool }

// NewTrendRepo constructs a TrendRepo with the given pool.
func NewTrendRepo(p PgxPool) *TrendRepo { return &TrendRepo{Pool: p} }

func scanTrend(row pgx.Row) (domain.Trend, error) {
	var t domain.Trend
	var meta []byte
	if err := row.Scan(&t.ID, &t.Source, &t.Topic, &t.NormalizedTopic, &t.FirstDiscoveredAt, &t.LastSeenAt, &t.Status, &meta); err != nil {
		return domain.Trend{}, err
	}
	_ = json.Unmarshal(meta, &t.Metadata)
	return t, nil
}

// FindByNormalizedTopic looks up an existing trend for (source, normalized_topic).
func (r *TrendRepo) FindByNormalizedTopic(ctx domain.Context, source domain.Platform, normalizedTopic string) (domain.Trend, error) {
	tracer := otel.Tracer("repo.trends")
	ctx, span := tracer.Start(ctx, "trends.FindByNormalizedTopic")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.sql.table", "trend"))
	q := `SELECT id, source_id, topic, normalized_topic, first_discovered_at, last_seen_at, status, metadata
	      FROM trend WHERE source_id=$1 AND normalized_topic=$2`
	t, err := scanTrend(r.Pool.QueryRow(ctx, q, source, normalizedTopic))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Trend{}, fmt.Errorf("op=trend.find_by_topic: %w", domain.ErrNotFound)
		}
		return domain.Trend{}, fmt.Errorf("op=trend.find_by_topic: %w", err)
	}
	return t, nil
}

// FindByURL looks up an existing trend by its primary-key URL, when the
// adapter stores the canonical content URL in metadata["url"].
func (r *TrendRepo) FindByURL(ctx domain.Context, url string) (domain.Trend, error) {
	tracer := otel.Tracer("repo.trends")
	ctx, span := tracer.Start(ctx, "trends.FindByURL")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.sql.table", "trend"))
	q := `SELECT id, source_id, topic, normalized_topic, first_discovered_at, last_seen_at, status, metadata
	      FROM trend WHERE metadata->>'url' = $1 LIMIT 1`
	t, err := scanTrend(r.Pool.QueryRow(ctx, q, url))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Trend{}, fmt.Errorf("op=trend.find_by_url: %w", domain.ErrNotFound)
		}
		return domain.Trend{}, fmt.Errorf("op=trend.find_by_url: %w", err)
	}
	return t, nil
}

// Create inserts a new trend and returns its id.
func (r *TrendRepo) Create(ctx domain.Context, t domain.Trend) (string, error) {
	tracer := otel.Tracer("repo.trends")
	ctx, span := tracer.Start(ctx, "trends.Create")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.operation", "INSERT"), attribute.String("db.sql.table", "trend"))
	id := t.ID
	if id == "" {
		id = uuid.New().String()
	}
	if t.FirstDiscoveredAt.IsZero() {
		t.FirstDiscoveredAt = time.Now().UTC()
	}
	if t.LastSeenAt.IsZero() {
		t.LastSeenAt = t.FirstDiscoveredAt
	}
	if t.Status == "" {
		t.Status = domain.TrendActive
	}
	meta, err := json.Marshal(t.Metadata)
	if err != nil {
		return "", fmt.Errorf("op=trend.create.marshal: %w", err)
	}
	q := `INSERT INTO trend (id, source_id, topic, normalized_topic, first_discovered_at, last_seen_at, status, metadata)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	      ON CONFLICT (source_id, normalized_topic) DO NOTHING`
	if _, err := r.Pool.Exec(ctx, q, id, t.Source, t.Topic, t.NormalizedTopic, t.FirstDiscoveredAt, t.LastSeenAt, t.Status, meta); err != nil {
		return "", fmt.Errorf("op=trend.create: %w", err)
	}
	return id, nil
}

// UpdateLifecycle advances a trend's last-seen timestamp and status.
func (r *TrendRepo) UpdateLifecycle(ctx domain.Context, id string, lastSeenAt time.Time, status domain.TrendStatus) error {
	tracer := otel.Tracer("repo.trends")
	ctx, span := tracer.Start(ctx, "trends.UpdateLifecycle")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.operation", "UPDATE"), attribute.String("db.sql.table", "trend"))
	q := `UPDATE trend SET last_seen_at=$2, status=$3 WHERE id=$1`
	if _, err := r.Pool.Exec(ctx, q, id, lastSeenAt, status); err != nil {
		return fmt.Errorf("op=trend.update_lifecycle: %w", err)
	}
	return nil
}

// Get loads a trend by id.
func (r *TrendRepo) Get(ctx domain.Context, id string) (domain.Trend, error) {
	tracer := otel.Tracer("repo.trends")
	ctx, span := tracer.Start(ctx, "trends.Get")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.sql.table", "trend"))
	q := `SELECT id, source_id, topic, normalized_topic, first_discovered_at, last_seen_at, status, metadata FROM trend WHERE id=$1`
	t, err := scanTrend(r.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Trend{}, fmt.Errorf("op=trend.get: %w", domain.ErrNotFound)
		}
		return domain.Trend{}, fmt.Errorf("op=trend.get: %w", err)
	}
	return t, nil
}

// ListBySource returns every trend tracked for a given source.
func (r *TrendRepo) ListBySource(ctx domain.Context, source domain.Platform) ([]domain.Trend, error) {
	tracer := otel.Tracer("repo.trends")
	ctx, span := tracer.Start(ctx, "trends.ListBySource")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.sql.table", "trend"))
	q := `SELECT id, source_id, topic, normalized_topic, first_discovered_at, last_seen_at, status, metadata
	      FROM trend WHERE source_id=$1 ORDER BY last_seen_at DESC`
	rows, err := r.Pool.Query(ctx, q, source)
	if err != nil {
		return nil, fmt.Errorf("op=trend.list_by_source: %w", err)
	}
	defer rows.Close()

	var out []domain.Trend
	for rows.Next() {
		t, err := scanTrend(rows)
		if err != nil {
			return nil, fmt.Errorf("op=trend.list_by_source_scan: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=trend.list_by_source_rows: %w", err)
	}
	return out, nil
}
