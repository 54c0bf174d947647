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

func TestMetricRepo_CreateBatch(t *testing.T) {
	t.Parallel()
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	repo := postgres.NewMetricRepo(m)
	ctx := context.Background()
	now := time.Now().UTC()

	m.ExpectBegin()
	m.ExpectExec("INSERT INTO metric").
		WithArgs(pgxmock.AnyArg(), "tv-1", domain.MetricLikes, int64(1000), "count", now, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	m.ExpectExec("INSERT INTO metric").
		WithArgs(pgxmock.AnyArg(), "tv-1", domain.MetricViews, int64(50000), "count", now, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	m.ExpectCommit()

	err = repo.CreateBatch(ctx, []domain.Metric{
		{TrendVersionID: "tv-1", Type: domain.MetricLikes, Value: 1000, Unit: "count", CollectedAt: now},
		{TrendVersionID: "tv-1", Type: domain.MetricViews, Value: 50000, Unit: "count", CollectedAt: now},
	})
	require.NoError(t, err)

	assert.NoError(t, repo.CreateBatch(ctx, nil))

	require.NoError(t, m.ExpectationsWereMet())
}

func TestMetricRepo_CreateBatch_RollsBackOnError(t *testing.T) {
	t.Parallel()
	m, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer m.Close()
	repo := postgres.NewMetricRepo(m)
	ctx := context.Background()

	m.ExpectBegin()
	m.ExpectExec("INSERT INTO metric").WillReturnError(assert.AnError)
	m.ExpectRollback()

	err = repo.CreateBatch(ctx, []domain.Metric{{TrendVersionID: "tv-1", Type: domain.MetricLikes, Value: 1}})
	require.Error(t, err)

	require.NoError(t, m.ExpectationsWereMet())
}
