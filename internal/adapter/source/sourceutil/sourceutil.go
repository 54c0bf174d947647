// Package sourceutil provides free-function text helpers shared by every
// platform adapter, matching the free-function style of pkg/textx rather
// than a shared base type.
package sourceutil

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/trendloom/harvester/internal/domain"
)

// ParseEngagementCount parses a shorthand engagement string ("5.2K", "1.2M",
// "3.4B", or a plain integer) into its numeric value (spec.md §4.6).
func ParseEngagementCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, fmt.Errorf("op=sourceutil.parse_engagement_count: empty string")
	}

	multiplier := 1.0
	suffix := s[len(s)-1]
	switch suffix {
	case 'K', 'k':
		multiplier = 1_000
		s = s[:len(s)-1]
	case 'M', 'm':
		multiplier = 1_000_000
		s = s[:len(s)-1]
	case 'B', 'b':
		multiplier = 1_000_000_000
		s = s[:len(s)-1]
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("op=sourceutil.parse_engagement_count: unparseable %q: %w", s, err)
	}
	return int64(f * multiplier), nil
}

// Page is the narrow subset of browser.Page the fallback selector helper
// needs; kept local to avoid an import cycle with the browser package.
type Page interface {
	QueryAll(ctx context.Context, selector string) ([]string, error)
}

// SelectFirstMatch tries each selector in order, returning the first
// non-empty match set. Returns domain.ErrScrape (SCRAPE/element_not_found)
// when every fallback is exhausted, per spec.md §4.6.
func SelectFirstMatch(ctx context.Context, page Page, selectors []string) ([]string, error) {
	for _, sel := range selectors {
		matches, err := page.QueryAll(ctx, sel)
		if err != nil {
			continue
		}
		if len(matches) > 0 {
			return matches, nil
		}
	}
	return nil, fmt.Errorf("op=sourceutil.select_first_match: %w", domain.ErrScrape)
}

// SelectFirstMatchText is SelectFirstMatch narrowed to the first matched
// string, or "" with ok=false when every fallback is exhausted — used for
// optional fields that must fall back to zero/null rather than fail the
// whole enrich() call (spec.md §4.6, point 4).
func SelectFirstMatchText(ctx context.Context, page Page, selectors []string) (string, bool) {
	matches, err := SelectFirstMatch(ctx, page, selectors)
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

// NormalizeHashtag lowercases topic and strips a single leading '#'
// (spec.md §4.9 transform stage).
func NormalizeHashtag(topic string) string {
	topic = strings.ToLower(strings.TrimSpace(topic))
	return strings.TrimPrefix(topic, "#")
}
