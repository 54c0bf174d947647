package source

import (
	"time"

	"github.com/trendloom/harvester/internal/browser"
	"github.com/trendloom/harvester/internal/domain"
	"github.com/trendloom/harvester/internal/proxypool"
	"github.com/trendloom/harvester/internal/service/ratelimiter"
)

// NewTikTok builds the TikTok discover/explore adapter.
func NewTikTok(bf browser.Factory, proxies *proxypool.Pool, limiter ratelimiter.Limiter, rateDelay time.Duration, minDiscoveryItems, maxDiscoveryRetries int) *PlatformAdapter {
	cfg := Config{
		Platform:    domain.PlatformTikTok,
		DiscoverURL: "https://www.tiktok.com/explore",
		RateDelay:   rateDelay,
		Selectors: Selectors{
			Topic:       []string{"[data-e2e='explore-hashtag-title']", ".tiktok-hashtag-title", "h3.hashtag-title"},
			ItemLink:    []string{"[data-e2e='explore-hashtag-link']", "a.hashtag-link"},
			Likes:       []string{"[data-e2e='like-count']", "strong.like-count"},
			Comments:    []string{"[data-e2e='comment-count']", "strong.comment-count"},
			Shares:      []string{"[data-e2e='share-count']", "strong.share-count"},
			Views:       []string{"[data-e2e='video-views']", "strong.video-views"},
			Caption:     []string{"[data-e2e='video-desc']", ".video-caption"},
			ContentType: []string{"[data-e2e='video-type']"},
		},
	}
	return New(cfg, bf, proxies, limiter, minDiscoveryItems, maxDiscoveryRetries)
}
