// Package snapshot implements Snapshot & Lifecycle (C10): it ranks a
// batch of same-day trend versions, computes change_from_previous deltas
// against the prior distinct version_date, emits TrendVersion rows, and
// advances each Trend's last_seen_at/status. The request-time recorder and
// the periodic decay/archival sweep mirror the split in
// internal/runlog.Recorder and internal/runlog.StuckRunSweeper.
package snapshot

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/trendloom/harvester/internal/domain"
)

// Input is one trend's scored, enriched state for a single harvest pass,
// ready to be ranked against its siblings and versioned.
type Input struct {
	TrendID            string
	NormalizedTopic    string
	EngagementScore    float64
	Likes              int64
	Comments           int64
	Views              int64
	SentimentPolarity  float64
	SentimentLabel     domain.SentimentLabel
	Language           string
	LanguageConfidence float64
	ScrapedAt          time.Time
}

// Snapshotter ranks, diffs, and persists TrendVersion rows and advances
// Trend lifecycle state.
type Snapshotter struct {
	Trends   domain.TrendRepository
	Versions domain.TrendVersionRepository
}

// New constructs a Snapshotter over the given repositories.
func New(trends domain.TrendRepository, versions domain.TrendVersionRepository) *Snapshotter {
	return &Snapshotter{Trends: trends, Versions: versions}
}

// RecordBatch ranks every input by engagement_score (ties broken
// alphabetically by normalized_topic, P2), computes each one's
// change_from_previous against the latest strictly-earlier version_date,
// assigns the next version_number per trend, persists the TrendVersion
// rows, and advances each Trend's last_seen_at/status (spec.md §4.10
// steps 1-5). versionDate must already be normalized to UTC midnight.
func (s *Snapshotter) RecordBatch(ctx domain.Context, source domain.Platform, versionDate time.Time, runVersionID string, inputs []Input) ([]domain.TrendVersion, error) {
	tracer := otel.Tracer("snapshot")
	ctx, span := tracer.Start(ctx, "Snapshotter.RecordBatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("snapshot.source", string(source)),
		attribute.Int("snapshot.batch_size", len(inputs)),
	)

	ranked := make([]Input, len(inputs))
	copy(ranked, inputs)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].EngagementScore != ranked[j].EngagementScore {
			return ranked[i].EngagementScore > ranked[j].EngagementScore
		}
		return ranked[i].NormalizedTopic < ranked[j].NormalizedTopic
	})

	out := make([]domain.TrendVersion, 0, len(ranked))
	now := time.Now().UTC()
	for i, in := range ranked {
		rank := i + 1
		v, err := s.recordOne(ctx, in, rank, versionDate, runVersionID, now)
		if err != nil {
			span.RecordError(err)
			slog.Error("snapshot failed to record trend version",
				slog.String("trend_id", in.TrendID), slog.Any("error", err))
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Snapshotter) recordOne(ctx domain.Context, in Input, rank int, versionDate time.Time, runVersionID string, now time.Time) (domain.TrendVersion, error) {
	var change *domain.ChangeFromPrevious
	prev, err := s.Versions.LatestBefore(ctx, in.TrendID, versionDate)
	switch {
	case err == nil:
		c := buildChange(prev, in, rank)
		change = &c
	case errors.Is(err, domain.ErrNotFound):
		// No prior snapshot: change_from_previous stays nil.
	default:
		return domain.TrendVersion{}, fmt.Errorf("op=snapshot.record_one.latest_before: %w", err)
	}

	versionNumber, err := s.Versions.MaxVersionNumber(ctx, in.TrendID, versionDate)
	if err != nil {
		return domain.TrendVersion{}, fmt.Errorf("op=snapshot.record_one.max_version: %w", err)
	}
	versionNumber++

	v := domain.TrendVersion{
		TrendID:            in.TrendID,
		VersionDate:        versionDate,
		VersionNumber:      versionNumber,
		EngagementScore:    in.EngagementScore,
		Likes:              in.Likes,
		Comments:           in.Comments,
		Views:              in.Views,
		SentimentPolarity:  in.SentimentPolarity,
		SentimentLabel:     in.SentimentLabel,
		Language:           in.Language,
		LanguageConfidence: in.LanguageConfidence,
		Rank:               rank,
		ChangeFromPrevious: change,
		ScrapedAt:          in.ScrapedAt,
		RunVersionID:       runVersionID,
	}
	id, err := s.Versions.Create(ctx, v)
	if err != nil {
		return domain.TrendVersion{}, fmt.Errorf("op=snapshot.record_one.create: %w", err)
	}
	v.ID = id

	trend, err := s.Trends.Get(ctx, in.TrendID)
	if err != nil {
		return v, fmt.Errorf("op=snapshot.record_one.get_trend: %w", err)
	}
	status := statusOnSeen(trend.Status)
	if err := s.Trends.UpdateLifecycle(ctx, in.TrendID, now, status); err != nil {
		return v, fmt.Errorf("op=snapshot.record_one.update_lifecycle: %w", err)
	}
	return v, nil
}

// statusOnSeen returns the trend's status immediately after being
// re-scraped. An archived trend never implicitly returns to active
// (P10): resurrecting one requires an explicit operator action that
// resets first_discovered_at, which this path does not perform.
func statusOnSeen(current domain.TrendStatus) domain.TrendStatus {
	if current == domain.TrendArchived {
		return domain.TrendArchived
	}
	return domain.TrendActive
}

// buildChange constructs change_from_previous for engagement_score,
// likes, comments, views, and rank against the prior snapshot (spec.md
// §4.10 step 3).
func buildChange(prev domain.TrendVersion, in Input, rank int) domain.ChangeFromPrevious {
	return domain.ChangeFromPrevious{
		EngagementScore: changeField(prev.EngagementScore, in.EngagementScore),
		Likes:           changeField(float64(prev.Likes), float64(in.Likes)),
		Comments:        changeField(float64(prev.Comments), float64(in.Comments)),
		Views:           changeField(float64(prev.Views), float64(in.Views)),
		Rank:            changeField(float64(prev.Rank), float64(rank)),
	}
}

// changeField computes the absolute/percent delta and direction between
// two values, safe-dividing when previous is zero (spec.md §4.10 step 3).
func changeField(previous, current float64) domain.ChangeField {
	abs := current - previous
	var pct float64
	switch {
	case previous != 0:
		pct = abs / math.Abs(previous) * 100
	case current != 0:
		pct = 100
	default:
		pct = 0
	}
	direction := "stable"
	switch {
	case pct > 1:
		direction = "up"
	case pct < -1:
		direction = "down"
	}
	return domain.ChangeField{
		Previous:       previous,
		Current:        current,
		AbsoluteChange: abs,
		PercentChange:  pct,
		Direction:      direction,
	}
}
