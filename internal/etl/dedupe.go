package etl

import (
	"errors"
	"fmt"
	"time"

	"github.com/trendloom/harvester/internal/domain"
)

// dedupe resolves the Trend row a transformed record belongs to, primary
// key URL and fallback normalized-hashtag-within-source (spec.md §4.9
// step 4). skip=true means the caller should drop the record without
// persisting a new version (the "ignore" strategy); a non-nil error on a
// hit under the "error" strategy is domain.ErrConflict (DATA/duplicate).
func (p *Pipeline) dedupe(ctx domain.Context, platform domain.Platform, t Transformed) (trendID string, skip bool, err error) {
	existing, found, err := p.findExisting(ctx, platform, t)
	if err != nil {
		return "", false, err
	}

	if !found {
		now := time.Now().UTC()
		meta := map[string]string{}
		if t.URL != "" {
			meta["url"] = t.URL
		}
		id, err := p.Trends.Create(ctx, domain.Trend{
			Source:            platform,
			Topic:             t.Topic,
			NormalizedTopic:   t.NormalizedTopic,
			FirstDiscoveredAt: firstNonZero(t.DiscoveredAt, now),
			LastSeenAt:        firstNonZero(t.DiscoveredAt, now),
			Status:            domain.TrendActive,
			Metadata:          meta,
		})
		if err != nil {
			return "", false, fmt.Errorf("op=etl.dedupe.create: %w", err)
		}
		return id, false, nil
	}

	switch p.DedupeStrategy {
	case "ignore":
		return existing.ID, true, nil
	case "error":
		return "", false, fmt.Errorf("op=etl.dedupe.hit: %w: %q", domain.ErrConflict, t.NormalizedTopic)
	default: // "update"
		return existing.ID, false, nil
	}
}

func (p *Pipeline) findExisting(ctx domain.Context, platform domain.Platform, t Transformed) (domain.Trend, bool, error) {
	if t.URL != "" {
		tr, err := p.Trends.FindByURL(ctx, t.URL)
		switch {
		case err == nil:
			return tr, true, nil
		case errors.Is(err, domain.ErrNotFound):
			// fall through to the normalized-topic lookup
		default:
			return domain.Trend{}, false, fmt.Errorf("op=etl.dedupe.find_by_url: %w", err)
		}
	}

	tr, err := p.Trends.FindByNormalizedTopic(ctx, platform, t.NormalizedTopic)
	switch {
	case err == nil:
		return tr, true, nil
	case errors.Is(err, domain.ErrNotFound):
		return domain.Trend{}, false, nil
	default:
		return domain.Trend{}, false, fmt.Errorf("op=etl.dedupe.find_by_topic: %w", err)
	}
}

func firstNonZero(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}
