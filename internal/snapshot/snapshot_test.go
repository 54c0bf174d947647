package snapshot_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendloom/harvester/internal/domain"
	"github.com/trendloom/harvester/internal/snapshot"
)

type fakeTrendRepo struct {
	trends map[string]domain.Trend
}

func newFakeTrendRepo(trends ...domain.Trend) *fakeTrendRepo {
	m := map[string]domain.Trend{}
	for _, t := range trends {
		m[t.ID] = t
	}
	return &fakeTrendRepo{trends: m}
}

func (f *fakeTrendRepo) FindByNormalizedTopic(domain.Context, domain.Platform, string) (domain.Trend, error) {
	return domain.Trend{}, domain.ErrNotFound
}
func (f *fakeTrendRepo) FindByURL(domain.Context, string) (domain.Trend, error) {
	return domain.Trend{}, domain.ErrNotFound
}
func (f *fakeTrendRepo) Create(_ domain.Context, t domain.Trend) (string, error) {
	f.trends[t.ID] = t
	return t.ID, nil
}
func (f *fakeTrendRepo) UpdateLifecycle(_ domain.Context, id string, lastSeenAt time.Time, status domain.TrendStatus) error {
	t, ok := f.trends[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.LastSeenAt = lastSeenAt
	t.Status = status
	f.trends[id] = t
	return nil
}
func (f *fakeTrendRepo) Get(_ domain.Context, id string) (domain.Trend, error) {
	t, ok := f.trends[id]
	if !ok {
		return domain.Trend{}, domain.ErrNotFound
	}
	return t, nil
}
func (f *fakeTrendRepo) ListBySource(_ domain.Context, source domain.Platform) ([]domain.Trend, error) {
	var out []domain.Trend
	for _, t := range f.trends {
		if t.Source == source {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeTrendVersionRepo struct {
	versions []domain.TrendVersion
	nextID   int
}

func (f *fakeTrendVersionRepo) Create(_ domain.Context, v domain.TrendVersion) (string, error) {
	f.nextID++
	v.ID = fmt.Sprintf("v-%d", f.nextID)
	f.versions = append(f.versions, v)
	return v.ID, nil
}

func (f *fakeTrendVersionRepo) LatestBefore(_ domain.Context, trendID string, before time.Time) (domain.TrendVersion, error) {
	var best *domain.TrendVersion
	for i := range f.versions {
		v := f.versions[i]
		if v.TrendID != trendID || !v.VersionDate.Before(before) {
			continue
		}
		if best == nil || v.VersionDate.After(best.VersionDate) || (v.VersionDate.Equal(best.VersionDate) && v.VersionNumber > best.VersionNumber) {
			best = &v
		}
	}
	if best == nil {
		return domain.TrendVersion{}, domain.ErrNotFound
	}
	return *best, nil
}

func (f *fakeTrendVersionRepo) MaxVersionNumber(_ domain.Context, trendID string, versionDate time.Time) (int, error) {
	max := 0
	for _, v := range f.versions {
		if v.TrendID == trendID && v.VersionDate.Equal(versionDate) && v.VersionNumber > max {
			max = v.VersionNumber
		}
	}
	return max, nil
}

func (f *fakeTrendVersionRepo) ListByDate(_ domain.Context, source domain.Platform, versionDate time.Time) ([]domain.TrendVersion, error) {
	var out []domain.TrendVersion
	for _, v := range f.versions {
		if v.VersionDate.Equal(versionDate) {
			out = append(out, v)
		}
	}
	return out, nil
}

func TestRecordBatch_RanksByScoreWithAlphabeticTiebreak(t *testing.T) {
	trends := newFakeTrendRepo(
		domain.Trend{ID: "t-a", Source: domain.PlatformTikTok, NormalizedTopic: "ai", Status: domain.TrendActive},
		domain.Trend{ID: "t-b", Source: domain.PlatformTikTok, NormalizedTopic: "blockchain", Status: domain.TrendActive},
		domain.Trend{ID: "t-c", Source: domain.PlatformTikTok, NormalizedTopic: "crypto", Status: domain.TrendActive},
	)
	versions := &fakeTrendVersionRepo{}
	snap := snapshot.New(trends, versions)
	today := time.Now().UTC().Truncate(24 * time.Hour)

	out, err := snap.RecordBatch(context.Background(), domain.PlatformTikTok, today, "run-1", []snapshot.Input{
		{TrendID: "t-a", NormalizedTopic: "ai", EngagementScore: 100},
		{TrendID: "t-b", NormalizedTopic: "blockchain", EngagementScore: 100},
		{TrendID: "t-c", NormalizedTopic: "crypto", EngagementScore: 50},
	})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "t-a", out[0].TrendID)
	assert.Equal(t, 1, out[0].Rank)
	assert.Equal(t, "t-b", out[1].TrendID)
	assert.Equal(t, 2, out[1].Rank)
	assert.Equal(t, "t-c", out[2].TrendID)
	assert.Equal(t, 3, out[2].Rank)
}

func TestRecordBatch_FirstSnapshotHasNilChange(t *testing.T) {
	trends := newFakeTrendRepo(domain.Trend{ID: "t-a", Source: domain.PlatformX, Status: domain.TrendActive})
	versions := &fakeTrendVersionRepo{}
	snap := snapshot.New(trends, versions)
	today := time.Now().UTC().Truncate(24 * time.Hour)

	out, err := snap.RecordBatch(context.Background(), domain.PlatformX, today, "run-1", []snapshot.Input{
		{TrendID: "t-a", EngagementScore: 3000},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Nil(t, out[0].ChangeFromPrevious)
	assert.Equal(t, 1, out[0].VersionNumber)
}

func TestRecordBatch_SecondDayComputesChangeAndIncrementsVersion(t *testing.T) {
	trends := newFakeTrendRepo(domain.Trend{ID: "t-a", Source: domain.PlatformX, Status: domain.TrendActive})
	versions := &fakeTrendVersionRepo{}
	snap := snapshot.New(trends, versions)
	day1 := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -1)
	day2 := day1.AddDate(0, 0, 1)

	_, err := snap.RecordBatch(context.Background(), domain.PlatformX, day1, "run-1", []snapshot.Input{
		{TrendID: "t-a", EngagementScore: 3000, Likes: 1000},
	})
	require.NoError(t, err)

	out, err := snap.RecordBatch(context.Background(), domain.PlatformX, day2, "run-2", []snapshot.Input{
		{TrendID: "t-a", EngagementScore: 3660, Likes: 1200},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].ChangeFromPrevious)
	assert.InDelta(t, 660.0, out[0].ChangeFromPrevious.EngagementScore.AbsoluteChange, 0.001)
	assert.InDelta(t, 22.0, out[0].ChangeFromPrevious.EngagementScore.PercentChange, 0.001)
	assert.Equal(t, "up", out[0].ChangeFromPrevious.EngagementScore.Direction)
	assert.Equal(t, 1, out[0].VersionNumber)
}

func TestRecordBatch_ArchivedTrendStaysArchived(t *testing.T) {
	trends := newFakeTrendRepo(domain.Trend{ID: "t-a", Source: domain.PlatformX, Status: domain.TrendArchived})
	versions := &fakeTrendVersionRepo{}
	snap := snapshot.New(trends, versions)
	today := time.Now().UTC().Truncate(24 * time.Hour)

	_, err := snap.RecordBatch(context.Background(), domain.PlatformX, today, "run-1", []snapshot.Input{
		{TrendID: "t-a", EngagementScore: 10},
	})
	require.NoError(t, err)
	tr, err := trends.Get(context.Background(), "t-a")
	require.NoError(t, err)
	assert.Equal(t, domain.TrendArchived, tr.Status)
}
