package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/trendloom/harvester/internal/domain"
	"github.com/trendloom/harvester/internal/scorer"
)

// DecaySweeper periodically applies time-decay to trends that have gone
// quiet and archives ones that have gone stale, the same kind of
// interval-driven housekeeping loop as internal/runlog.StuckRunSweeper.
type DecaySweeper struct {
	trends   domain.TrendRepository
	versions domain.TrendVersionRepository

	decayRateWeekly         float64
	inactiveDaysThreshold   int
	expirationDaysThreshold int
	archiveEnabled          bool
	interval                time.Duration
}

// NewDecaySweeper constructs a sweeper over the given repositories and
// lifecycle configuration (spec.md §4.10, "Decay & archival").
func NewDecaySweeper(trends domain.TrendRepository, versions domain.TrendVersionRepository, decayRateWeekly float64, inactiveDaysThreshold, expirationDaysThreshold int, archiveEnabled bool, interval time.Duration) *DecaySweeper {
	if trends == nil || versions == nil {
		return nil
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &DecaySweeper{
		trends:                  trends,
		versions:                versions,
		decayRateWeekly:         decayRateWeekly,
		inactiveDaysThreshold:   inactiveDaysThreshold,
		expirationDaysThreshold: expirationDaysThreshold,
		archiveEnabled:          archiveEnabled,
		interval:                interval,
	}
}

// Run blocks, sweeping on every tick until ctx is cancelled.
func (d *DecaySweeper) Run(ctx context.Context, platforms []domain.Platform) {
	if d == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.sweepOnce(ctx, platforms)

	for {
		select {
		case <-ctx.Done():
			slog.Info("decay sweeper stopping")
			return
		case <-ticker.C:
			d.sweepOnce(ctx, platforms)
		}
	}
}

func (d *DecaySweeper) sweepOnce(ctx context.Context, platforms []domain.Platform) {
	tracer := otel.Tracer("snapshot.decay")
	ctx, span := tracer.Start(ctx, "DecaySweeper.sweepOnce")
	defer span.End()

	decayed, archived := 0, 0
	for _, p := range platforms {
		trends, err := d.trends.ListBySource(ctx, p)
		if err != nil {
			span.RecordError(err)
			slog.Error("decay sweep failed to list trends", slog.String("platform", string(p)), slog.Any("error", err))
			continue
		}
		for _, t := range trends {
			if t.Status == domain.TrendArchived {
				continue
			}
			wasDecayed, wasArchived := d.sweepTrend(ctx, t)
			if wasDecayed {
				decayed++
			}
			if wasArchived {
				archived++
			}
		}
	}

	span.SetAttributes(
		attribute.Int("snapshot.decay.trends_decayed", decayed),
		attribute.Int("snapshot.decay.trends_archived", archived),
	)
}

func (d *DecaySweeper) sweepTrend(ctx context.Context, t domain.Trend) (decayedNow, archivedNow bool) {
	now := time.Now().UTC()
	inactiveDays := now.Sub(t.LastSeenAt).Hours() / 24

	if d.expirationDaysThreshold > 0 && inactiveDays > float64(d.expirationDaysThreshold) {
		if !d.archiveEnabled {
			// archive_enabled=false disables the expiration sweep entirely;
			// there is no repository primitive for a hard delete, so a
			// quiet trend with archival turned off simply stays as-is.
			return false, false
		}
		if err := d.trends.UpdateLifecycle(ctx, t.ID, t.LastSeenAt, domain.TrendArchived); err != nil {
			slog.Error("decay sweep failed to archive trend", slog.String("trend_id", t.ID), slog.Any("error", err))
			return false, false
		}
		return false, true
	}

	if d.inactiveDaysThreshold <= 0 || inactiveDays <= float64(d.inactiveDaysThreshold) {
		return false, false
	}

	weeksInactive := inactiveDays / 7
	today := now.Truncate(24 * time.Hour)
	latest, err := d.versions.LatestBefore(ctx, t.ID, today.Add(24*time.Hour))
	if err != nil {
		// No snapshot to decay from; nothing to do this tick.
		return false, false
	}

	decayedScore := scorer.Normalize(latest.EngagementScore, 0, d.decayRateWeekly, weeksInactive)
	if decayedScore == latest.EngagementScore {
		return false, false
	}

	versionNumber, err := d.versions.MaxVersionNumber(ctx, t.ID, today)
	if err != nil {
		slog.Error("decay sweep failed to read max version", slog.String("trend_id", t.ID), slog.Any("error", err))
		return false, false
	}
	versionNumber++

	next := latest
	next.ID = ""
	next.VersionDate = today
	next.VersionNumber = versionNumber
	next.EngagementScore = decayedScore
	next.Rank = 0
	next.ChangeFromPrevious = &domain.ChangeFromPrevious{
		EngagementScore: changeField(latest.EngagementScore, decayedScore),
	}
	next.ScrapedAt = now
	next.Decayed = true

	if _, err := d.versions.Create(ctx, next); err != nil {
		slog.Error("decay sweep failed to persist decayed snapshot",
			slog.String("trend_id", t.ID), slog.Any("error", fmt.Errorf("op=snapshot.decay.create: %w", err)))
		return false, false
	}

	status := domain.TrendDeclining
	if err := d.trends.UpdateLifecycle(ctx, t.ID, t.LastSeenAt, status); err != nil {
		slog.Error("decay sweep failed to mark trend declining", slog.String("trend_id", t.ID), slog.Any("error", err))
	}
	return true, false
}
