package source

import (
	"time"

	"github.com/trendloom/harvester/internal/browser"
	"github.com/trendloom/harvester/internal/domain"
	"github.com/trendloom/harvester/internal/proxypool"
	"github.com/trendloom/harvester/internal/service/ratelimiter"
)

// NewX builds the X (Twitter) trending-topics adapter.
func NewX(bf browser.Factory, proxies *proxypool.Pool, limiter ratelimiter.Limiter, rateDelay time.Duration, minDiscoveryItems, maxDiscoveryRetries int) *PlatformAdapter {
	cfg := Config{
		Platform:    domain.PlatformX,
		DiscoverURL: "https://x.com/explore/tabs/trending",
		RateDelay:   rateDelay,
		Selectors: Selectors{
			Topic:       []string{"[data-testid='trend'] span", ".trend-name"},
			ItemLink:    []string{"[data-testid='trend'] a"},
			Likes:       []string{"[data-testid='like'] span"},
			Comments:    []string{"[data-testid='reply'] span"},
			Shares:      []string{"[data-testid='retweet'] span"},
			Views:       []string{"[data-testid='app-text-transition-container'] span"},
			Caption:     []string{"[data-testid='tweetText']"},
			ContentType: []string{"[data-testid='videoPlayer']", "[data-testid='tweetPhoto']"},
		},
	}
	return New(cfg, bf, proxies, limiter, minDiscoveryItems, maxDiscoveryRetries)
}
