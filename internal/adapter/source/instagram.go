package source

import (
	"time"

	"github.com/trendloom/harvester/internal/browser"
	"github.com/trendloom/harvester/internal/domain"
	"github.com/trendloom/harvester/internal/proxypool"
	"github.com/trendloom/harvester/internal/service/ratelimiter"
)

// NewInstagram builds the Instagram explore/hashtag adapter.
func NewInstagram(bf browser.Factory, proxies *proxypool.Pool, limiter ratelimiter.Limiter, rateDelay time.Duration, minDiscoveryItems, maxDiscoveryRetries int) *PlatformAdapter {
	cfg := Config{
		Platform:    domain.PlatformInstagram,
		DiscoverURL: "https://www.instagram.com/explore/tags/",
		RateDelay:   rateDelay,
		Selectors: Selectors{
			Topic:       []string{"a[href^='/explore/tags/'] span", ".hashtag-title"},
			ItemLink:    []string{"a[href^='/explore/tags/']"},
			Likes:       []string{"span[aria-label*='likes']", "._ac2a"},
			Comments:    []string{"span[aria-label*='comments']", "._ac2a"},
			Shares:      []string{},
			Views:       []string{"span[aria-label*='views']"},
			Caption:     []string{"h1._ap3a", "._a9zs span"},
			ContentType: []string{"[aria-label='Carousel']", "svg[aria-label='Video']"},
		},
	}
	return New(cfg, bf, proxies, limiter, minDiscoveryItems, maxDiscoveryRetries)
}
