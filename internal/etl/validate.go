package etl

import (
	"fmt"
	"strings"

	"github.com/trendloom/harvester/internal/adapter/source"
	"github.com/trendloom/harvester/internal/adapter/source/sourceutil"
	"github.com/trendloom/harvester/internal/domain"
)

// knownLanguages bounds the language hints this deployment actually
// detects (internal/sentiment); anything else fails validation rather
// than persisting an unrecognized code.
var knownLanguages = map[string]bool{
	"en": true, "es": true, "pt": true, "fr": true, "de": true, "id": true, "unknown": true,
}

// Validate enforces spec.md §4.9 step 2 before a record is transformed:
// hashtag shape, per-sample metric caps, URL shape, and a known language
// hint.
func Validate(rec source.TrendRecord) error {
	normalized := sourceutil.NormalizeHashtag(rec.Topic)
	if len(normalized) < 2 || len(normalized) > 50 {
		return fmt.Errorf("op=etl.validate.hashtag_length: %w: %q", domain.ErrInvalidArgument, rec.Topic)
	}
	for _, r := range normalized {
		if !isHashtagRune(r) {
			return fmt.Errorf("op=etl.validate.hashtag_charset: %w: %q", domain.ErrInvalidArgument, rec.Topic)
		}
	}

	if rec.URL != "" {
		if len(rec.URL) > 500 {
			return fmt.Errorf("op=etl.validate.url_length: %w", domain.ErrInvalidArgument)
		}
		if !hasValidURLPrefix(rec.URL) {
			return fmt.Errorf("op=etl.validate.url_prefix: %w: %q", domain.ErrInvalidArgument, rec.URL)
		}
	}

	for _, s := range rec.Samples {
		if err := domain.ValidateMetric(domain.Metric{Type: domain.MetricLikes, Value: s.Likes}); err != nil {
			return fmt.Errorf("op=etl.validate.likes: %w", err)
		}
		if err := domain.ValidateMetric(domain.Metric{Type: domain.MetricComments, Value: s.Comments}); err != nil {
			return fmt.Errorf("op=etl.validate.comments: %w", err)
		}
		if err := domain.ValidateMetric(domain.Metric{Type: domain.MetricViews, Value: s.Views}); err != nil {
			return fmt.Errorf("op=etl.validate.views: %w", err)
		}
		if s.Shares < 0 {
			return fmt.Errorf("op=etl.validate.shares: %w", domain.ErrInvalidArgument)
		}
		if s.LanguageHint != "" && !knownLanguages[strings.ToLower(s.LanguageHint)] {
			return fmt.Errorf("op=etl.validate.language: %w: %q", domain.ErrInvalidArgument, s.LanguageHint)
		}
	}
	return nil
}

func isHashtagRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
}

func hasValidURLPrefix(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "/")
}
