package source

import (
	"time"

	"github.com/trendloom/harvester/internal/browser"
	"github.com/trendloom/harvester/internal/domain"
	"github.com/trendloom/harvester/internal/proxypool"
	"github.com/trendloom/harvester/internal/service/ratelimiter"
)

// NewLinkedIn builds the LinkedIn public hashtag-feed adapter.
func NewLinkedIn(bf browser.Factory, proxies *proxypool.Pool, limiter ratelimiter.Limiter, rateDelay time.Duration, minDiscoveryItems, maxDiscoveryRetries int) *PlatformAdapter {
	cfg := Config{
		Platform:    domain.PlatformLinkedIn,
		DiscoverURL: "https://www.linkedin.com/feed/hashtag/",
		RateDelay:   rateDelay,
		Selectors: Selectors{
			Topic:       []string{".feed-hashtag-title", "h1.hashtag-name"},
			ItemLink:    []string{"a.feed-hashtag-link"},
			Likes:       []string{"[data-reaction-count]", "span.social-counts-reactions"},
			Comments:    []string{"[aria-label*='comments']", "span.social-counts-comments"},
			Shares:      []string{"[aria-label*='reposts']", "span.social-counts-reposts"},
			Views:       []string{},
			Caption:     []string{".feed-shared-text", "span.break-words"},
			ContentType: []string{"video", ".feed-shared-carousel"},
		},
	}
	return New(cfg, bf, proxies, limiter, minDiscoveryItems, maxDiscoveryRetries)
}
