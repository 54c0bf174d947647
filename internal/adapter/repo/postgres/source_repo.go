package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/trendloom/harvester/internal/domain"
)

// SourceRepo persists and loads source rows using a minimal pgx pool.
type SourceRepo struct{ Pool PgxPool }

// NewSourceRepo constructs a SourceRepo with the given pool.
func NewSourceRepo(p PgxPool) *SourceRepo { return &SourceRepo{Pool: p} }

// Upsert inserts or updates a source row keyed by platform.
func (r *SourceRepo) Upsert(ctx domain.Context, s domain.Source) error {
	tracer := otel.Tracer("repo.sources")
	ctx, span := tracer.Start(ctx, "sources.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPSERT"),
		attribute.String("db.sql.table", "source"),
	)
	meta, err := json.Marshal(s.Metadata)
	if err != nil {
		return fmt.Errorf("op=source.upsert.marshal: %w", err)
	}
	q := `INSERT INTO source (platform, display_name, enabled, metadata)
	      VALUES ($1,$2,$3,$4)
	      ON CONFLICT (platform) DO UPDATE SET display_name=$2, enabled=$3, metadata=$4`
	if _, err := r.Pool.Exec(ctx, q, s.Platform, s.DisplayName, s.Enabled, meta); err != nil {
		return fmt.Errorf("op=source.upsert: %w", err)
	}
	return nil
}

// Get loads a source by platform.
func (r *SourceRepo) Get(ctx domain.Context, platform domain.Platform) (domain.Source, error) {
	tracer := otel.Tracer("repo.sources")
	ctx, span := tracer.Start(ctx, "sources.Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "source"),
	)
	q := `SELECT platform, display_name, enabled, metadata FROM source WHERE platform=$1`
	row := r.Pool.QueryRow(ctx, q, platform)
	var s domain.Source
	var meta []byte
	if err := row.Scan(&s.Platform, &s.DisplayName, &s.Enabled, &meta); err != nil {
		if err == pgx.ErrNoRows {
			return domain.Source{}, fmt.Errorf("op=source.get: %w", domain.ErrNotFound)
		}
		return domain.Source{}, fmt.Errorf("op=source.get: %w", err)
	}
	_ = json.Unmarshal(meta, &s.Metadata)
	return s, nil
}

// List returns every configured source.
func (r *SourceRepo) List(ctx domain.Context) ([]domain.Source, error) {
	tracer := otel.Tracer("repo.sources")
	ctx, span := tracer.Start(ctx, "sources.List")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "source"),
	)
	q := `SELECT platform, display_name, enabled, metadata FROM source ORDER BY platform`
	rows, err := r.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("op=source.list: %w", err)
	}
	defer rows.Close()

	var out []domain.Source
	for rows.Next() {
		var s domain.Source
		var meta []byte
		if err := rows.Scan(&s.Platform, &s.DisplayName, &s.Enabled, &meta); err != nil {
			return nil, fmt.Errorf("op=source.list_scan: %w", err)
		}
		_ = json.Unmarshal(meta, &s.Metadata)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=source.list_rows: %w", err)
	}
	return out, nil
}
