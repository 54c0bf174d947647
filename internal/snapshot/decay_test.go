package snapshot_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendloom/harvester/internal/domain"
	"github.com/trendloom/harvester/internal/snapshot"
)

func TestDecaySweeper_DecaysInactiveTrendAndFloorsAtTenPercent(t *testing.T) {
	now := time.Now().UTC()
	trendID := "t-a"
	trends := newFakeTrendRepo(domain.Trend{
		ID: trendID, Source: domain.PlatformX, Status: domain.TrendActive,
		LastSeenAt: now.AddDate(0, 0, -21),
	})
	versions := &fakeTrendVersionRepo{}
	versionDate := now.AddDate(0, 0, -21).Truncate(24 * time.Hour)
	_, err := versions.Create(context.Background(), domain.TrendVersion{
		TrendID: trendID, VersionDate: versionDate, VersionNumber: 1, EngagementScore: 10000,
	})
	require.NoError(t, err)

	sweeper := snapshot.NewDecaySweeper(trends, versions, 0.05, 7, 60, true, time.Hour)
	require.NotNil(t, sweeper)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sweeper.Run(ctx, []domain.Platform{domain.PlatformX})

	var decayedScore float64
	for _, v := range versions.versions {
		if v.Decayed {
			decayedScore = v.EngagementScore
		}
	}
	assert.InDelta(t, 8573.75, decayedScore, 1.0)

	tr, err := trends.Get(context.Background(), trendID)
	require.NoError(t, err)
	assert.Equal(t, domain.TrendDeclining, tr.Status)
}

func TestDecaySweeper_ArchivesExpiredTrendWhenEnabled(t *testing.T) {
	now := time.Now().UTC()
	trendID := "t-stale"
	trends := newFakeTrendRepo(domain.Trend{
		ID: trendID, Source: domain.PlatformX, Status: domain.TrendActive,
		LastSeenAt: now.AddDate(0, 0, -40),
	})
	versions := &fakeTrendVersionRepo{}

	sweeper := snapshot.NewDecaySweeper(trends, versions, 0.05, 7, 30, true, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sweeper.Run(ctx, []domain.Platform{domain.PlatformX})

	tr, err := trends.Get(context.Background(), trendID)
	require.NoError(t, err)
	assert.Equal(t, domain.TrendArchived, tr.Status)
}

func TestDecaySweeper_LeavesStaleTrendAloneWhenArchiveDisabled(t *testing.T) {
	now := time.Now().UTC()
	trendID := "t-stale"
	trends := newFakeTrendRepo(domain.Trend{
		ID: trendID, Source: domain.PlatformX, Status: domain.TrendActive,
		LastSeenAt: now.AddDate(0, 0, -40),
	})
	versions := &fakeTrendVersionRepo{}

	sweeper := snapshot.NewDecaySweeper(trends, versions, 0.05, 7, 30, false, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sweeper.Run(ctx, []domain.Platform{domain.PlatformX})

	tr, err := trends.Get(context.Background(), trendID)
	require.NoError(t, err)
	assert.Equal(t, domain.TrendActive, tr.Status)
}
