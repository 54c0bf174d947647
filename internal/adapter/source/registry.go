package source

import (
	"fmt"
	"time"

	"github.com/trendloom/harvester/internal/browser"
	"github.com/trendloom/harvester/internal/domain"
	"github.com/trendloom/harvester/internal/proxypool"
	"github.com/trendloom/harvester/internal/service/ratelimiter"
)

// BuildAll constructs one Adapter per known platform, keyed by platform,
// matching the teacher-adjacent PlatformAPI registry pattern (one map of
// per-platform implementations behind a shared driving engine).
func BuildAll(bf browser.Factory, proxies *proxypool.Pool, limiter ratelimiter.Limiter, rateDelays map[domain.Platform]time.Duration, minDiscoveryItems, maxDiscoveryRetries int) map[domain.Platform]Adapter {
	delay := func(p domain.Platform) time.Duration { return rateDelays[p] }
	return map[domain.Platform]Adapter{
		domain.PlatformTikTok:    NewTikTok(bf, proxies, limiter, delay(domain.PlatformTikTok), minDiscoveryItems, maxDiscoveryRetries),
		domain.PlatformInstagram: NewInstagram(bf, proxies, limiter, delay(domain.PlatformInstagram), minDiscoveryItems, maxDiscoveryRetries),
		domain.PlatformLinkedIn:  NewLinkedIn(bf, proxies, limiter, delay(domain.PlatformLinkedIn), minDiscoveryItems, maxDiscoveryRetries),
		domain.PlatformFacebook:  NewFacebook(bf, proxies, limiter, delay(domain.PlatformFacebook), minDiscoveryItems, maxDiscoveryRetries),
		domain.PlatformYouTube:   NewYouTube(bf, proxies, limiter, delay(domain.PlatformYouTube), minDiscoveryItems, maxDiscoveryRetries),
		domain.PlatformX:         NewX(bf, proxies, limiter, delay(domain.PlatformX), minDiscoveryItems, maxDiscoveryRetries),
	}
}

// For looks up one platform's adapter out of a BuildAll registry.
func For(registry map[domain.Platform]Adapter, platform domain.Platform) (Adapter, error) {
	a, ok := registry[platform]
	if !ok {
		return nil, fmt.Errorf("op=source.for: %w: unsupported platform %q", domain.ErrInvalidArgument, platform)
	}
	return a, nil
}
