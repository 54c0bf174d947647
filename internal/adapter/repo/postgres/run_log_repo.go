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

// RunLogRepo persists and loads run_log rows using a minimal pgx pool.
type RunLogRepo struct{ Pool PgxPool }

// NewRunLogRepo constructs a RunLogRepo with the given pool.
func NewRunLogRepo(p PgxPool) *RunLogRepo { return &RunLogRepo{Pool: p} }

const runLogColumns = `id, platform, status, started_at, ended_at, duration_seconds,
	       records_scraped, records_uploaded, records_invalid, error_message,
	       error_traceback, run_version_id, metadata`

func scanRunLog(row pgx.Row) (domain.RunLog, error) {
	var rl domain.RunLog
	var meta []byte
	if err := row.Scan(
		&rl.ID, &rl.Platform, &rl.Status, &rl.StartedAt, &rl.EndedAt, &rl.DurationSeconds,
		&rl.RecordsScraped, &rl.RecordsUploaded, &rl.RecordsInvalid, &rl.ErrorMessage,
		&rl.ErrorTraceback, &rl.RunVersionID, &meta,
	); err != nil {
		return domain.RunLog{}, err
	}
	_ = json.Unmarshal(meta, &rl.Metadata)
	return rl, nil
}

// Create inserts a new run_log row and returns its id.
func (r *RunLogRepo) Create(ctx domain.Context, rl domain.RunLog) (string, error) {
	tracer := otel.Tracer("repo.run_logs")
	ctx, span := tracer.Start(ctx, "run_logs.Create")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.operation", "INSERT"), attribute.String("db.sql.table", "run_log"))
	id := rl.ID
	if id == "" {
		id = uuid.New().String()
	}
	if rl.StartedAt.IsZero() {
		rl.StartedAt = time.Now().UTC()
	}
	meta, err := json.Marshal(rl.Metadata)
	if err != nil {
		return "", fmt.Errorf("op=run_log.create.marshal: %w", err)
	}
	q := `INSERT INTO run_log (` + runLogColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	if _, err := r.Pool.Exec(ctx, q,
		id, rl.Platform, rl.Status, rl.StartedAt, rl.EndedAt, rl.DurationSeconds,
		rl.RecordsScraped, rl.RecordsUploaded, rl.RecordsInvalid, rl.ErrorMessage,
		rl.ErrorTraceback, rl.RunVersionID, meta,
	); err != nil {
		return "", fmt.Errorf("op=run_log.create: %w", err)
	}
	return id, nil
}

// Update overwrites an existing run_log row by id, used to record
// completion status, counts, and error details.
func (r *RunLogRepo) Update(ctx domain.Context, rl domain.RunLog) error {
	tracer := otel.Tracer("repo.run_logs")
	ctx, span := tracer.Start(ctx, "run_logs.Update")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.operation", "UPDATE"), attribute.String("db.sql.table", "run_log"))
	meta, err := json.Marshal(rl.Metadata)
	if err != nil {
		return fmt.Errorf("op=run_log.update.marshal: %w", err)
	}
	q := `UPDATE run_log SET status=$2, ended_at=$3, duration_seconds=$4, records_scraped=$5,
	      records_uploaded=$6, records_invalid=$7, error_message=$8, error_traceback=$9,
	      run_version_id=$10, metadata=$11
	      WHERE id=$1`
	tag, err := r.Pool.Exec(ctx, q,
		rl.ID, rl.Status, rl.EndedAt, rl.DurationSeconds, rl.RecordsScraped,
		rl.RecordsUploaded, rl.RecordsInvalid, rl.ErrorMessage, rl.ErrorTraceback,
		rl.RunVersionID, meta,
	)
	if err != nil {
		return fmt.Errorf("op=run_log.update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=run_log.update: %w", domain.ErrNotFound)
	}
	return nil
}

// Get loads a run_log by id.
func (r *RunLogRepo) Get(ctx domain.Context, id string) (domain.RunLog, error) {
	tracer := otel.Tracer("repo.run_logs")
	ctx, span := tracer.Start(ctx, "run_logs.Get")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.sql.table", "run_log"))
	q := `SELECT ` + runLogColumns + ` FROM run_log WHERE id=$1`
	rl, err := scanRunLog(r.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.RunLog{}, fmt.Errorf("op=run_log.get: %w", domain.ErrNotFound)
		}
		return domain.RunLog{}, fmt.Errorf("op=run_log.get: %w", err)
	}
	return rl, nil
}

// ListRunning returns every run_log still in the running state that
// started before olderThan, used by the stuck-run sweeper.
func (r *RunLogRepo) ListRunning(ctx domain.Context, olderThan time.Time) ([]domain.RunLog, error) {
	tracer := otel.Tracer("repo.run_logs")
	ctx, span := tracer.Start(ctx, "run_logs.ListRunning")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.sql.table", "run_log"))
	q := `SELECT ` + runLogColumns + ` FROM run_log WHERE status=$1 AND started_at < $2 ORDER BY started_at ASC`
	rows, err := r.Pool.Query(ctx, q, domain.RunRunning, olderThan)
	if err != nil {
		return nil, fmt.Errorf("op=run_log.list_running: %w", err)
	}
	defer rows.Close()

	var out []domain.RunLog
	for rows.Next() {
		rl, err := scanRunLog(rows)
		if err != nil {
			return nil, fmt.Errorf("op=run_log.list_running_scan: %w", err)
		}
		out = append(out, rl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=run_log.list_running_rows: %w", err)
	}
	return out, nil
}
