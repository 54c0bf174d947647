// Package etl implements the Validate -> Transform -> Dedupe -> Load
// pipeline (spec.md §4.9) that turns raw adapter output into persisted
// trend versions and metric rows. It is grounded on internal/proxypool's
// execute-with-retry loop (cenkalti/backoff) for the load stage, and on
// internal/runlog's request-scoped/periodic split for how the scheduler
// is expected to wrap a single pipeline run with a RunLog.
//
// A chunk that still fails after its retry budget is exhausted is not
// retried record-by-record: internal/adapter/queue/redpanda's retry
// queue is wired to re-deliver a whole domain.HarvestTaskPayload, not a
// bespoke per-record payload, so DeferFunc hands the owning harvest run
// back to that queue and the next attempt re-scrapes and re-validates
// the still-missing records from scratch.
package etl

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/trendloom/harvester/internal/adapter/source"
	"github.com/trendloom/harvester/internal/domain"
	"github.com/trendloom/harvester/internal/scorer"
	"github.com/trendloom/harvester/internal/sentiment"
	"github.com/trendloom/harvester/internal/snapshot"
)

var tracer = otel.Tracer("github.com/trendloom/harvester/internal/etl")

// DeferFunc re-enqueues the owning harvest run after a chunk's load
// retries are exhausted. Implemented by internal/scheduler against
// redpanda.RetryManager.Defer.
type DeferFunc func(ctx domain.Context, kind domain.ErrorKind) error

// Pipeline wires the repositories and collaborators the load stage
// needs. DedupeStrategy, ChunkSize, and MaxRetries come from
// config.Config's ETL block (C9).
type Pipeline struct {
	Trends      domain.TrendRepository
	Metrics     domain.MetricRepository
	Snapshotter *snapshot.Snapshotter
	Sentiment   *sentiment.Analyzer

	DedupeStrategy string
	ChunkSize      int
	MaxRetries     int
}

// Result tallies one Load call's outcome for the owning RunLog.
type Result struct {
	Scraped  int
	Invalid  int
	Loaded   int
	Versions []domain.TrendVersion
}

type staged struct {
	trendID string
	t       Transformed
}

// Load validates and transforms every record, resolves each to a Trend
// row, and persists the resulting TrendVersion/Metric rows in chunks of
// ChunkSize. Records that fail validation are counted as Invalid and
// dropped; chunks that exhaust MaxRetries are handed to deferFn and
// their records are not reflected in Versions.
func (p *Pipeline) Load(ctx domain.Context, platform domain.Platform, versionDate time.Time, runVersionID string, records []source.TrendRecord, weights scorer.Weights, deferFn DeferFunc) (Result, error) {
	ctx, span := tracer.Start(ctx, "etl.Pipeline.Load")
	defer span.End()
	span.SetAttributes(
		attribute.String("platform", string(platform)),
		attribute.Int("records", len(records)),
	)

	result := Result{Scraped: len(records)}
	ready := make([]staged, 0, len(records))

	for _, rec := range records {
		if err := Validate(rec); err != nil {
			result.Invalid++
			slog.Warn("dropping invalid record", slog.String("platform", string(platform)), slog.Any("error", err))
			continue
		}

		transformed := Transform(ctx, rec, weights, p.Sentiment)
		trendID, skip, err := p.dedupe(ctx, platform, transformed)
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				result.Invalid++
				slog.Warn("dropping duplicate record", slog.String("platform", string(platform)), slog.String("topic", transformed.NormalizedTopic))
				continue
			}
			span.RecordError(err)
			return result, fmt.Errorf("op=etl.Load.dedupe: %w", err)
		}
		if skip {
			continue
		}
		ready = append(ready, staged{trendID: trendID, t: transformed})
	}

	chunkSize := p.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 100
	}

	for start := 0; start < len(ready); start += chunkSize {
		end := start + chunkSize
		if end > len(ready) {
			end = len(ready)
		}
		chunk := ready[start:end]

		versions, err := p.loadChunkWithRetry(ctx, platform, versionDate, runVersionID, chunk)
		if err != nil {
			span.RecordError(err)
			if deferFn != nil {
				if deferErr := deferFn(ctx, domain.KindOf(err)); deferErr != nil {
					slog.Error("failed to defer run after exhausted chunk retries", slog.Any("error", deferErr))
				}
			}
			result.Invalid += len(chunk)
			continue
		}
		result.Loaded += len(versions)
		result.Versions = append(result.Versions, versions...)
	}

	span.SetAttributes(
		attribute.Int("loaded", result.Loaded),
		attribute.Int("invalid", result.Invalid),
	)
	return result, nil
}

// loadChunkWithRetry persists one chunk's snapshot versions and metric
// rows, retrying the whole chunk with exponential backoff the way
// internal/proxypool.ExecuteWithRetry retries a single proxied call.
func (p *Pipeline) loadChunkWithRetry(ctx domain.Context, platform domain.Platform, versionDate time.Time, runVersionID string, chunk []staged) ([]domain.TrendVersion, error) {
	maxRetries := p.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	var lastErr error
	for attempt := 0; ; attempt++ {
		versions, err := p.loadChunk(ctx, versionDate, runVersionID, chunk)
		if err == nil {
			return versions, nil
		}
		lastErr = err

		if attempt >= maxRetries {
			return nil, fmt.Errorf("op=etl.loadChunkWithRetry: %w", lastErr)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(bo.NextBackOff()):
		}
	}
}

func (p *Pipeline) loadChunk(ctx domain.Context, versionDate time.Time, runVersionID string, chunk []staged) ([]domain.TrendVersion, error) {
	inputs := make([]snapshot.Input, len(chunk))
	for i, s := range chunk {
		inputs[i] = snapshot.Input{
			TrendID:            s.trendID,
			NormalizedTopic:    s.t.NormalizedTopic,
			EngagementScore:    s.t.EngagementScore,
			Likes:              s.t.Likes,
			Comments:           s.t.Comments,
			Views:              s.t.Views,
			SentimentPolarity:  s.t.Sentiment.Polarity,
			SentimentLabel:     s.t.Sentiment.Label,
			Language:           s.t.Sentiment.PrimaryLanguage,
			LanguageConfidence: s.t.Sentiment.MeanConfidence,
			ScrapedAt:          time.Now().UTC(),
		}
	}
	if len(chunk) == 0 {
		return nil, nil
	}

	versions, err := p.Snapshotter.RecordBatch(ctx, chunk[0].t.Platform, versionDate, runVersionID, inputs)
	if err != nil {
		return nil, fmt.Errorf("op=etl.loadChunk.snapshot: %w", err)
	}

	metrics := make([]domain.Metric, 0, len(versions)*3)
	now := time.Now().UTC()
	for i, v := range versions {
		t := chunk[i].t
		metrics = append(metrics,
			domain.Metric{TrendVersionID: v.ID, Type: domain.MetricLikes, Value: t.Likes, CollectedAt: now},
			domain.Metric{TrendVersionID: v.ID, Type: domain.MetricComments, Value: t.Comments, CollectedAt: now},
			domain.Metric{TrendVersionID: v.ID, Type: domain.MetricShares, Value: t.Shares, CollectedAt: now},
			domain.Metric{TrendVersionID: v.ID, Type: domain.MetricViews, Value: t.Views, CollectedAt: now},
		)
	}
	if len(metrics) > 0 {
		if err := p.Metrics.CreateBatch(ctx, metrics); err != nil {
			return nil, fmt.Errorf("op=etl.loadChunk.metrics: %w", err)
		}
	}

	return versions, nil
}
