package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/trendloom/harvester/internal/domain"
)

// SchedulerSettingRepo persists and loads scheduler_settings rows using a
// minimal pgx pool.
type SchedulerSettingRepo struct{ Pool PgxPool }

// NewSchedulerSettingRepo constructs a SchedulerSettingRepo with the given pool.
func NewSchedulerSettingRepo(p PgxPool) *SchedulerSettingRepo { return &SchedulerSettingRepo{Pool: p} }

const schedulerSettingColumns = `platform, enabled, frequency_hours, last_run_at, next_run_at,
	       run_count, success_count, failure_count, metadata`

func scanSchedulerSetting(row pgx.Row) (domain.SchedulerSetting, error) {
	var s domain.SchedulerSetting
	var meta []byte
	if err := row.Scan(
		&s.Platform, &s.Enabled, &s.FrequencyHours, &s.LastRunAt, &s.NextRunAt,
		&s.RunCount, &s.SuccessCount, &s.FailureCount, &meta,
	); err != nil {
		return domain.SchedulerSetting{}, err
	}
	_ = json.Unmarshal(meta, &s.Metadata)
	return s, nil
}

// Get loads a scheduler setting by platform.
func (r *SchedulerSettingRepo) Get(ctx domain.Context, platform domain.Platform) (domain.SchedulerSetting, error) {
	tracer := otel.Tracer("repo.scheduler_settings")
	ctx, span := tracer.Start(ctx, "scheduler_settings.Get")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.sql.table", "scheduler_settings"))
	q := `SELECT ` + schedulerSettingColumns + ` FROM scheduler_settings WHERE platform=$1`
	s, err := scanSchedulerSetting(r.Pool.QueryRow(ctx, q, platform))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.SchedulerSetting{}, fmt.Errorf("op=scheduler_setting.get: %w", domain.ErrNotFound)
		}
		return domain.SchedulerSetting{}, fmt.Errorf("op=scheduler_setting.get: %w", err)
	}
	return s, nil
}

// List returns every scheduler setting, ordered by platform.
func (r *SchedulerSettingRepo) List(ctx domain.Context) ([]domain.SchedulerSetting, error) {
	tracer := otel.Tracer("repo.scheduler_settings")
	ctx, span := tracer.Start(ctx, "scheduler_settings.List")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.sql.table", "scheduler_settings"))
	q := `SELECT ` + schedulerSettingColumns + ` FROM scheduler_settings ORDER BY platform`
	rows, err := r.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("op=scheduler_setting.list: %w", err)
	}
	defer rows.Close()

	var out []domain.SchedulerSetting
	for rows.Next() {
		s, err := scanSchedulerSetting(rows)
		if err != nil {
			return nil, fmt.Errorf("op=scheduler_setting.list_scan: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=scheduler_setting.list_rows: %w", err)
	}
	return out, nil
}

// Upsert inserts or updates a scheduler setting keyed by platform.
func (r *SchedulerSettingRepo) Upsert(ctx domain.Context, s domain.SchedulerSetting) error {
	tracer := otel.Tracer("repo.scheduler_settings")
	ctx, span := tracer.Start(ctx, "scheduler_settings.Upsert")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.operation", "UPSERT"), attribute.String("db.sql.table", "scheduler_settings"))
	meta, err := json.Marshal(s.Metadata)
	if err != nil {
		return fmt.Errorf("op=scheduler_setting.upsert.marshal: %w", err)
	}
	q := `INSERT INTO scheduler_settings (platform, enabled, frequency_hours, last_run_at, next_run_at, run_count, success_count, failure_count, metadata)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	      ON CONFLICT (platform) DO UPDATE SET
	        enabled=$2, frequency_hours=$3, last_run_at=$4, next_run_at=$5,
	        run_count=$6, success_count=$7, failure_count=$8, metadata=$9`
	if _, err := r.Pool.Exec(ctx, q,
		s.Platform, s.Enabled, s.FrequencyHours, s.LastRunAt, s.NextRunAt,
		s.RunCount, s.SuccessCount, s.FailureCount, meta,
	); err != nil {
		return fmt.Errorf("op=scheduler_setting.upsert: %w", err)
	}
	return nil
}
