package source

import (
	"time"

	"github.com/trendloom/harvester/internal/browser"
	"github.com/trendloom/harvester/internal/domain"
	"github.com/trendloom/harvester/internal/proxypool"
	"github.com/trendloom/harvester/internal/service/ratelimiter"
)

// NewFacebook builds the Facebook public-page/hashtag adapter.
func NewFacebook(bf browser.Factory, proxies *proxypool.Pool, limiter ratelimiter.Limiter, rateDelay time.Duration, minDiscoveryItems, maxDiscoveryRetries int) *PlatformAdapter {
	cfg := Config{
		Platform:    domain.PlatformFacebook,
		DiscoverURL: "https://www.facebook.com/hashtag/",
		RateDelay:   rateDelay,
		Selectors: Selectors{
			Topic:       []string{"a[href*='/hashtag/'] span", ".hashtag-title"},
			ItemLink:    []string{"a[href*='/hashtag/']"},
			Likes:       []string{"[aria-label*='Like:']", "span.like-count"},
			Comments:    []string{"[aria-label*='comment']", "span.comment-count"},
			Shares:      []string{"[aria-label*='share']", "span.share-count"},
			Views:       []string{"[aria-label*='views']"},
			Caption:     []string{"[data-ad-preview='message']", "div.post-caption"},
			ContentType: []string{"video", "[data-testid='carousel']"},
		},
	}
	return New(cfg, bf, proxies, limiter, minDiscoveryItems, maxDiscoveryRetries)
}
