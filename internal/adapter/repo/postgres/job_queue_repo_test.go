package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendloom/harvester/internal/adapter/repo/postgres"
	"github.com/trendloom/harvester/internal/domain"
)

func TestJobQueueRepo_EnqueueDueForRetryMarkAttemptDelete(t *testing.T) {
	t.Parallel()
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	repo := postgres.NewJobQueueRepo(m)
	ctx := context.Background()
	now := time.Now().UTC()

	m.ExpectExec("INSERT INTO job_queue").
		WithArgs(pgxmock.AnyArg(), []byte(`{"platform":"tiktok"}`), "upstream_timeout", 0, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	id, err := repo.Enqueue(ctx, domain.QueueItem{Payload: []byte(`{"platform":"tiktok"}`), ErrorKind: "upstream_timeout"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	rows := pgxmock.NewRows([]string{"id", "payload", "error_kind", "attempts", "next_attempt_at", "created_at"}).
		AddRow(id, []byte(`{"platform":"tiktok"}`), "upstream_timeout", 1, now, now)
	m.ExpectQuery(`SELECT id, payload, error_kind, attempts, next_attempt_at, created_at\s+FROM job_queue WHERE next_attempt_at <= \$1 ORDER BY next_attempt_at ASC LIMIT \$2`).
		WithArgs(now, 10).
		WillReturnRows(rows)
	due, err := repo.DueForRetry(ctx, now, 10)
	require.NoError(t, err)
	assert.Len(t, due, 1)

	m.ExpectExec("UPDATE job_queue SET attempts").
		WithArgs(id, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.MarkAttempt(ctx, id, now.Add(time.Minute)))

	m.ExpectExec("UPDATE job_queue SET attempts").
		WithArgs("missing", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err = repo.MarkAttempt(ctx, "missing", now)
	require.ErrorIs(t, err, domain.ErrNotFound)

	m.ExpectExec("DELETE FROM job_queue WHERE id=\\$1").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, repo.Delete(ctx, id))

	m.ExpectExec("DELETE FROM job_queue WHERE id=\\$1").
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	err = repo.Delete(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, m.ExpectationsWereMet())
}
