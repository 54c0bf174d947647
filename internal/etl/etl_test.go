package etl_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendloom/harvester/internal/adapter/source"
	"github.com/trendloom/harvester/internal/domain"
	"github.com/trendloom/harvester/internal/etl"
	"github.com/trendloom/harvester/internal/scorer"
	"github.com/trendloom/harvester/internal/snapshot"
)

type fakeTrendRepo struct {
	byURL   map[string]domain.Trend
	byTopic map[string]domain.Trend
	byID    map[string]domain.Trend
	nextID  int
}

func newFakeTrendRepo() *fakeTrendRepo {
	return &fakeTrendRepo{byURL: map[string]domain.Trend{}, byTopic: map[string]domain.Trend{}, byID: map[string]domain.Trend{}}
}

func (f *fakeTrendRepo) FindByNormalizedTopic(_ domain.Context, source domain.Platform, normalizedTopic string) (domain.Trend, error) {
	t, ok := f.byTopic[string(source)+"/"+normalizedTopic]
	if !ok {
		return domain.Trend{}, domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeTrendRepo) FindByURL(_ domain.Context, url string) (domain.Trend, error) {
	t, ok := f.byURL[url]
	if !ok {
		return domain.Trend{}, domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeTrendRepo) Create(_ domain.Context, t domain.Trend) (string, error) {
	f.nextID++
	t.ID = fmt.Sprintf("trend-%d", f.nextID)
	f.byID[t.ID] = t
	f.byTopic[string(t.Source)+"/"+t.NormalizedTopic] = t
	if url := t.Metadata["url"]; url != "" {
		f.byURL[url] = t
	}
	return t.ID, nil
}

func (f *fakeTrendRepo) UpdateLifecycle(_ domain.Context, id string, lastSeenAt time.Time, status domain.TrendStatus) error {
	t, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.LastSeenAt = lastSeenAt
	t.Status = status
	f.byID[id] = t
	return nil
}

func (f *fakeTrendRepo) Get(_ domain.Context, id string) (domain.Trend, error) {
	t, ok := f.byID[id]
	if !ok {
		return domain.Trend{}, domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeTrendRepo) ListBySource(_ domain.Context, source domain.Platform) ([]domain.Trend, error) {
	var out []domain.Trend
	for _, t := range f.byID {
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
		if best == nil || v.VersionDate.After(best.VersionDate) {
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

type fakeMetricRepo struct {
	created []domain.Metric
}

func (f *fakeMetricRepo) CreateBatch(_ domain.Context, metrics []domain.Metric) error {
	f.created = append(f.created, metrics...)
	return nil
}

func newPipeline(trends domain.TrendRepository, versions domain.TrendVersionRepository, metrics domain.MetricRepository) *etl.Pipeline {
	return &etl.Pipeline{
		Trends:         trends,
		Metrics:        metrics,
		Snapshotter:    snapshot.New(trends, versions),
		DedupeStrategy: "update",
		ChunkSize:      100,
		MaxRetries:     2,
	}
}

func rec(topic string, likes, comments, shares, views int64) source.TrendRecord {
	return source.TrendRecord{
		Platform: domain.PlatformTikTok,
		Topic:    topic,
		URL:      "https://tiktok.com/tag/" + topic,
		Samples: []source.Sample{
			{Likes: likes, Comments: comments, Shares: shares, Views: views, Caption: "loving this trend"},
		},
		DiscoveredAt: time.Now().UTC(),
	}
}

func TestLoad_PersistsNewTrendsAndMetrics(t *testing.T) {
	trends := newFakeTrendRepo()
	versions := &fakeTrendVersionRepo{}
	metrics := &fakeMetricRepo{}
	p := newPipeline(trends, versions, metrics)

	result, err := p.Load(context.Background(), domain.PlatformTikTok, time.Now().UTC().Truncate(24*time.Hour), "run-1",
		[]source.TrendRecord{rec("aitools", 100, 10, 5, 1000), rec("cooking", 50, 5, 1, 500)},
		scorer.Weights{Likes: 1, Comments: 1, Shares: 1, Views: 1}, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Scraped)
	assert.Equal(t, 0, result.Invalid)
	assert.Equal(t, 2, result.Loaded)
	assert.Len(t, versions.versions, 2)
	assert.Len(t, metrics.created, 8) // 4 metric rows per trend version
}

func TestLoad_RejectsInvalidHashtagAndOverCapMetric(t *testing.T) {
	trends := newFakeTrendRepo()
	versions := &fakeTrendVersionRepo{}
	metrics := &fakeMetricRepo{}
	p := newPipeline(trends, versions, metrics)

	badHashtag := rec("a", 1, 1, 1, 1) // below the 2-char minimum
	overCap := rec("whoa", 10_000_000_000, 1, 1, 1)

	result, err := p.Load(context.Background(), domain.PlatformTikTok, time.Now().UTC().Truncate(24*time.Hour), "run-1",
		[]source.TrendRecord{badHashtag, overCap}, scorer.Weights{Likes: 1, Comments: 1, Shares: 1, Views: 1}, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Invalid)
	assert.Equal(t, 0, result.Loaded)
}

func TestLoad_UpdateStrategyReusesExistingTrend(t *testing.T) {
	trends := newFakeTrendRepo()
	versions := &fakeTrendVersionRepo{}
	metrics := &fakeMetricRepo{}
	p := newPipeline(trends, versions, metrics)
	ctx := context.Background()
	today := time.Now().UTC().Truncate(24 * time.Hour)
	weights := scorer.Weights{Likes: 1, Comments: 1, Shares: 1, Views: 1}

	_, err := p.Load(ctx, domain.PlatformTikTok, today, "run-1", []source.TrendRecord{rec("aitools", 100, 10, 5, 1000)}, weights, nil)
	require.NoError(t, err)

	result, err := p.Load(ctx, domain.PlatformTikTok, today.AddDate(0, 0, 1), "run-2", []source.TrendRecord{rec("aitools", 200, 20, 10, 2000)}, weights, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Loaded)
	assert.Len(t, trends.byID, 1, "second run should reuse the existing trend row")
	assert.Len(t, versions.versions, 2)
}

func TestLoad_IgnoreStrategySkipsExistingTrend(t *testing.T) {
	trends := newFakeTrendRepo()
	versions := &fakeTrendVersionRepo{}
	metrics := &fakeMetricRepo{}
	p := newPipeline(trends, versions, metrics)
	p.DedupeStrategy = "ignore"
	ctx := context.Background()
	today := time.Now().UTC().Truncate(24 * time.Hour)
	weights := scorer.Weights{Likes: 1, Comments: 1, Shares: 1, Views: 1}

	_, err := p.Load(ctx, domain.PlatformTikTok, today, "run-1", []source.TrendRecord{rec("aitools", 100, 10, 5, 1000)}, weights, nil)
	require.NoError(t, err)

	result, err := p.Load(ctx, domain.PlatformTikTok, today.AddDate(0, 0, 1), "run-2", []source.TrendRecord{rec("aitools", 200, 20, 10, 2000)}, weights, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Loaded)
	assert.Len(t, versions.versions, 1) // only the first run's version persisted
}

func TestLoad_ErrorStrategyTreatsDuplicateAsInvalid(t *testing.T) {
	trends := newFakeTrendRepo()
	versions := &fakeTrendVersionRepo{}
	metrics := &fakeMetricRepo{}
	p := newPipeline(trends, versions, metrics)
	p.DedupeStrategy = "error"
	ctx := context.Background()
	today := time.Now().UTC().Truncate(24 * time.Hour)
	weights := scorer.Weights{Likes: 1, Comments: 1, Shares: 1, Views: 1}

	_, err := p.Load(ctx, domain.PlatformTikTok, today, "run-1", []source.TrendRecord{rec("aitools", 100, 10, 5, 1000)}, weights, nil)
	require.NoError(t, err)

	result, err := p.Load(ctx, domain.PlatformTikTok, today.AddDate(0, 0, 1), "run-2", []source.TrendRecord{rec("aitools", 200, 20, 10, 2000)}, weights, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Invalid)
	assert.Equal(t, 0, result.Loaded)
}

func TestLoad_ChunkFailureInvokesDeferFunc(t *testing.T) {
	trends := newFakeTrendRepo()
	versions := &failingTrendVersionRepo{}
	metrics := &fakeMetricRepo{}
	p := newPipeline(trends, versions, metrics)
	p.MaxRetries = 1

	var deferredKind domain.ErrorKind
	deferCalls := 0
	deferFn := func(_ domain.Context, kind domain.ErrorKind) error {
		deferCalls++
		deferredKind = kind
		return nil
	}

	result, err := p.Load(context.Background(), domain.PlatformTikTok, time.Now().UTC().Truncate(24*time.Hour), "run-1",
		[]source.TrendRecord{rec("aitools", 100, 10, 5, 1000)}, scorer.Weights{Likes: 1, Comments: 1, Shares: 1, Views: 1}, deferFn)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Invalid)
	assert.Equal(t, 0, result.Loaded)
	assert.Equal(t, 1, deferCalls)
	assert.NotEmpty(t, deferredKind)
}

type failingTrendVersionRepo struct{}

func (failingTrendVersionRepo) Create(domain.Context, domain.TrendVersion) (string, error) {
	return "", fmt.Errorf("op=test.create: %w", domain.ErrDatabase)
}
func (failingTrendVersionRepo) LatestBefore(domain.Context, string, time.Time) (domain.TrendVersion, error) {
	return domain.TrendVersion{}, domain.ErrNotFound
}
func (failingTrendVersionRepo) MaxVersionNumber(domain.Context, string, time.Time) (int, error) {
	return 0, nil
}
func (failingTrendVersionRepo) ListByDate(domain.Context, domain.Platform, time.Time) ([]domain.TrendVersion, error) {
	return nil, nil
}
