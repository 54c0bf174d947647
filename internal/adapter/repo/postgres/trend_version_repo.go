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

// TrendVersionRepo persists and loads trend_version rows using a minimal
// pgx pool.
type TrendVersionRepo struct{ Pool PgxPool }

// NewTrendVersionRepo constructs a TrendVersionRepo with the given pool.
func NewTrendVersionRepo(p PgxPool) *TrendVersionRepo { return &TrendVersionRepo{Pool: p} }

// Create inserts a new trend_version row and returns its id.
func (r *TrendVersionRepo) Create(ctx domain.Context, v domain.TrendVersion) (string, error) {
	tracer := otel.Tracer("repo.trend_versions")
	ctx, span := tracer.Start(ctx, "trend_versions.Create")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.operation", "INSERT"), attribute.String("db.sql.table", "trend_version"))
	id := v.ID
	if id == "" {
		id = uuid.New().String()
	}
	change, err := json.Marshal(v.ChangeFromPrevious)
	if err != nil {
		return "", fmt.Errorf("op=trend_version.create.marshal: %w", err)
	}
	q := `INSERT INTO trend_version
	      (id, trend_id, version_date, version_number, engagement_score, likes, comments, views, sentiment_polarity,
	       sentiment_label, language, language_confidence, rank, change_from_previous, scraped_at, run_version_id, decayed)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	      ON CONFLICT (trend_id, version_date, version_number) DO NOTHING`
	if _, err := r.Pool.Exec(ctx, q,
		id, v.TrendID, v.VersionDate, v.VersionNumber, v.EngagementScore, v.Likes, v.Comments, v.Views, v.SentimentPolarity,
		v.SentimentLabel, v.Language, v.LanguageConfidence, v.Rank, change, v.ScrapedAt, v.RunVersionID, v.Decayed,
	); err != nil {
		return "", fmt.Errorf("op=trend_version.create: %w", err)
	}
	return id, nil
}

func scanTrendVersion(row pgx.Row) (domain.TrendVersion, error) {
	var v domain.TrendVersion
	var change []byte
	if err := row.Scan(
		&v.ID, &v.TrendID, &v.VersionDate, &v.VersionNumber, &v.EngagementScore, &v.Likes, &v.Comments, &v.Views, &v.SentimentPolarity,
		&v.SentimentLabel, &v.Language, &v.LanguageConfidence, &v.Rank, &change, &v.ScrapedAt, &v.RunVersionID, &v.Decayed,
	); err != nil {
		return domain.TrendVersion{}, err
	}
	if len(change) > 0 {
		var c domain.ChangeFromPrevious
		if err := json.Unmarshal(change, &c); err == nil {
			v.ChangeFromPrevious = &c
		}
	}
	return v, nil
}

const trendVersionColumns = `id, trend_id, version_date, version_number, engagement_score, likes, comments, views, sentiment_polarity,
	       sentiment_label, language, language_confidence, rank, change_from_previous, scraped_at, run_version_id, decayed`

// LatestBefore returns the most recent version for a trend strictly before
// the given time, used to compute ChangeFromPrevious.
func (r *TrendVersionRepo) LatestBefore(ctx domain.Context, trendID string, before time.Time) (domain.TrendVersion, error) {
	tracer := otel.Tracer("repo.trend_versions")
	ctx, span := tracer.Start(ctx, "trend_versions.LatestBefore")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.sql.table", "trend_version"))
	q := `SELECT ` + trendVersionColumns + ` FROM trend_version
	      WHERE trend_id=$1 AND version_date < $2
	      ORDER BY version_date DESC, version_number DESC LIMIT 1`
	v, err := scanTrendVersion(r.Pool.QueryRow(ctx, q, trendID, before))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.TrendVersion{}, fmt.Errorf("op=trend_version.latest_before: %w", domain.ErrNotFound)
		}
		return domain.TrendVersion{}, fmt.Errorf("op=trend_version.latest_before: %w", err)
	}
	return v, nil
}

// MaxVersionNumber returns the highest version_number already recorded for
// a trend on a given version_date, or 0 when none exists.
func (r *TrendVersionRepo) MaxVersionNumber(ctx domain.Context, trendID string, versionDate time.Time) (int, error) {
	tracer := otel.Tracer("repo.trend_versions")
	ctx, span := tracer.Start(ctx, "trend_versions.MaxVersionNumber")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.sql.table", "trend_version"))
	q := `SELECT COALESCE(MAX(version_number), 0) FROM trend_version WHERE trend_id=$1 AND version_date=$2`
	var max int
	if err := r.Pool.QueryRow(ctx, q, trendID, versionDate).Scan(&max); err != nil {
		return 0, fmt.Errorf("op=trend_version.max_version: %w", err)
	}
	return max, nil
}

// ListByDate returns every version recorded for a source on a given date,
// used to compute same-day rankings (P2).
func (r *TrendVersionRepo) ListByDate(ctx domain.Context, source domain.Platform, versionDate time.Time) ([]domain.TrendVersion, error) {
	tracer := otel.Tracer("repo.trend_versions")
	ctx, span := tracer.Start(ctx, "trend_versions.ListByDate")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.sql.table", "trend_version"))
	q := `SELECT tv.id, tv.trend_id, tv.version_date, tv.version_number, tv.engagement_score, tv.likes, tv.comments, tv.views, tv.sentiment_polarity,
	             tv.sentiment_label, tv.language, tv.language_confidence, tv.rank, tv.change_from_previous, tv.scraped_at, tv.run_version_id, tv.decayed
	      FROM trend_version tv
	      JOIN trend t ON t.id = tv.trend_id
	      WHERE t.source_id=$1 AND tv.version_date=$2
	      ORDER BY tv.engagement_score DESC`
	rows, err := r.Pool.Query(ctx, q, source, versionDate)
	if err != nil {
		return nil, fmt.Errorf("op=trend_version.list_by_date: %w", err)
	}
	defer rows.Close()

	var out []domain.TrendVersion
	for rows.Next() {
		v, err := scanTrendVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("op=trend_version.list_by_date_scan: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=trend_version.list_by_date_rows: %w", err)
	}
	return out, nil
}
