package source

import (
	"time"

	"github.com/trendloom/harvester/internal/browser"
	"github.com/trendloom/harvester/internal/domain"
	"github.com/trendloom/harvester/internal/proxypool"
	"github.com/trendloom/harvester/internal/service/ratelimiter"
)

// NewYouTube builds the YouTube trending-shorts adapter.
func NewYouTube(bf browser.Factory, proxies *proxypool.Pool, limiter ratelimiter.Limiter, rateDelay time.Duration, minDiscoveryItems, maxDiscoveryRetries int) *PlatformAdapter {
	cfg := Config{
		Platform:    domain.PlatformYouTube,
		DiscoverURL: "https://www.youtube.com/feed/trending",
		RateDelay:   rateDelay,
		Selectors: Selectors{
			Topic:       []string{"#video-title", "a#video-title-link"},
			ItemLink:    []string{"a#video-title-link", "a#thumbnail"},
			Likes:       []string{"#segmented-like-button button span", "like-button-view-model span"},
			Comments:    []string{"#count .count-text"},
			Shares:      []string{},
			Views:       []string{"#metadata-line span:first-child", "#info span.view-count"},
			Caption:     []string{"#description-inline-expander", "#description yt-formatted-string"},
			ContentType: []string{"ytd-reel-player-overlay-renderer"},
		},
	}
	return New(cfg, bf, proxies, limiter, minDiscoveryItems, maxDiscoveryRetries)
}
