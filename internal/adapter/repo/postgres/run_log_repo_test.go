package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendloom/harvester/internal/adapter/repo/postgres"
	"github.com/trendloom/harvester/internal/domain"
)

var runLogCols = []string{
	"id", "platform", "status", "started_at", "ended_at", "duration_seconds",
	"records_scraped", "records_uploaded", "records_invalid", "error_message",
	"error_traceback", "run_version_id", "metadata",
}

func TestRunLogRepo_CreateUpdateGetListRunning(t *testing.T) {
	t.Parallel()
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	repo := postgres.NewRunLogRepo(m)
	ctx := context.Background()
	now := time.Now().UTC()

	m.ExpectExec("INSERT INTO run_log").
		WithArgs(pgxmock.AnyArg(), domain.PlatformTikTok, domain.RunRunning, pgxmock.AnyArg(), (*time.Time)(nil), 0.0, 0, 0, 0, "", "", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	id, err := repo.Create(ctx, domain.RunLog{Platform: domain.PlatformTikTok, Status: domain.RunRunning})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	ended := now.Add(5 * time.Minute)
	m.ExpectExec("UPDATE run_log SET status").
		WithArgs(id, domain.RunCompleted, &ended, 300.0, 10, 8, 2, "", "", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.Update(ctx, domain.RunLog{
		ID: id, Status: domain.RunCompleted, EndedAt: &ended, DurationSeconds: 300.0,
		RecordsScraped: 10, RecordsUploaded: 8, RecordsInvalid: 2,
	}))

	m.ExpectExec("UPDATE run_log SET status").
		WithArgs("missing", domain.RunFailed, (*time.Time)(nil), 0.0, 0, 0, 0, "", "", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err = repo.Update(ctx, domain.RunLog{ID: "missing", Status: domain.RunFailed})
	require.ErrorIs(t, err, domain.ErrNotFound)

	rows := pgxmock.NewRows(runLogCols).
		AddRow(id, string(domain.PlatformTikTok), string(domain.RunCompleted), now, &ended, 300.0, 10, 8, 2, "", "", "", []byte(`{}`))
	m.ExpectQuery(`SELECT .* FROM run_log WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(rows)
	rl, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, rl.Status)

	m.ExpectQuery(`SELECT .* FROM run_log WHERE id=\$1`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)
	_, err = repo.Get(ctx, "nope")
	require.ErrorIs(t, err, domain.ErrNotFound)

	rows2 := pgxmock.NewRows(runLogCols).
		AddRow("stuck-1", string(domain.PlatformInstagram), string(domain.RunRunning), now.Add(-time.Hour), nil, 0.0, 0, 0, 0, "", "", "", []byte(`{}`))
	m.ExpectQuery(`SELECT .* FROM run_log WHERE status=\$1 AND started_at < \$2 ORDER BY started_at ASC`).
		WithArgs(domain.RunRunning, pgxmock.AnyArg()).
		WillReturnRows(rows2)
	stuck, err := repo.ListRunning(ctx, now.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Len(t, stuck, 1)

	require.NoError(t, m.ExpectationsWereMet())
}
