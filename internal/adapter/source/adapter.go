// Package source implements the Source Adapter Interface (C6): a
// discover/enrich/aggregate contract with one thin per-platform config next
// to a shared driving engine, grounded on the robfig/cron-based
// ScraperService/PlatformAPI pattern from the brand-optimization scraper
// example (one map of PlatformAPI implementations behind a shared service).
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/trendloom/harvester/internal/adapter/source/sourceutil"
	"github.com/trendloom/harvester/internal/browser"
	"github.com/trendloom/harvester/internal/domain"
	"github.com/trendloom/harvester/internal/proxypool"
	"github.com/trendloom/harvester/internal/service/ratelimiter"
)

// RawTrend is one discovered topic link, before enrichment.
type RawTrend struct {
	Topic string
	URL   string
}

// Sample is one visited item's extracted engagement and content data
// (spec.md §4.6: "extract likes/comments/views/shares, caption text,
// content type ..., language hint").
type Sample struct {
	Likes        int64
	Comments     int64
	Shares       int64
	Views        int64
	Caption      string
	ContentType  string
	LanguageHint string
}

// EnrichedTrend is a RawTrend plus its visited samples.
type EnrichedTrend struct {
	RawTrend
	Samples []Sample
}

// TrendRecord is one topic's rolled-up record, ready for the ETL pipeline
// (spec.md §4.6: "rolls up per-topic samples into a single record").
type TrendRecord struct {
	Platform                domain.Platform
	Topic                   string
	NormalizedTopic         string
	URL                     string
	Samples                 []Sample
	ContentTypeDistribution map[string]int
	DiscoveredAt            time.Time
}

// Adapter is the per-platform discover/enrich/aggregate contract.
type Adapter interface {
	Platform() domain.Platform
	Discover(ctx context.Context, limit int) ([]RawTrend, error)
	Enrich(ctx context.Context, raw RawTrend, sampleSize int) (EnrichedTrend, error)
	Aggregate(enriched []EnrichedTrend) []TrendRecord
}

// Selectors holds the multiple fallback selector strategies (spec.md §4.6)
// this platform's discover/enrich pages carry for each essential field.
type Selectors struct {
	Topic       []string
	ItemLink    []string
	Likes       []string
	Comments    []string
	Shares      []string
	Views       []string
	Caption     []string
	ContentType []string
}

// Config is one platform's adapter configuration: the generic engine in
// this file is parameterized by Config rather than reimplemented per file.
type Config struct {
	Platform    domain.Platform
	DiscoverURL string
	Selectors   Selectors
	RateDelay   time.Duration
}

// PlatformAdapter is the shared engine driving Config against a browser
// Factory, proxy pool, and rate limiter. Per-platform files in this package
// (tiktok.go, instagram.go, ...) construct one with their own Config.
type PlatformAdapter struct {
	cfg                 Config
	browser             browser.Factory
	proxies             *proxypool.Pool
	limiter             ratelimiter.Limiter
	minDiscoveryItems   int
	maxDiscoveryRetries int
}

// New constructs a PlatformAdapter.
func New(cfg Config, bf browser.Factory, proxies *proxypool.Pool, limiter ratelimiter.Limiter, minDiscoveryItems, maxDiscoveryRetries int) *PlatformAdapter {
	if minDiscoveryItems <= 0 {
		minDiscoveryItems = 1
	}
	return &PlatformAdapter{
		cfg:                 cfg,
		browser:             bf,
		proxies:             proxies,
		limiter:             limiter,
		minDiscoveryItems:   minDiscoveryItems,
		maxDiscoveryRetries: maxDiscoveryRetries,
	}
}

// Platform returns the platform this adapter discovers for.
func (a *PlatformAdapter) Platform() domain.Platform { return a.cfg.Platform }

// Discover visits the platform's trending page and extracts candidate
// topics, retrying with a fresh proxy (up to maxDiscoveryRetries) when the
// yield falls below minDiscoveryItems (spec.md §4.6, last line).
func (a *PlatformAdapter) Discover(ctx context.Context, limit int) ([]RawTrend, error) {
	var last []RawTrend
	var lastErr error

	attempts := a.maxDiscoveryRetries + 1
	for i := 0; i < attempts; i++ {
		raws, err := a.discoverOnce(ctx, limit)
		if err == nil && len(raws) >= a.minDiscoveryItems {
			return raws, nil
		}
		last, lastErr = raws, err
	}
	if lastErr != nil {
		return nil, fmt.Errorf("op=source.%s.discover: %w", a.cfg.Platform, lastErr)
	}
	return last, nil
}

func (a *PlatformAdapter) discoverOnce(ctx context.Context, limit int) ([]RawTrend, error) {
	opts, entry := a.pageOptions()
	var out []RawTrend
	start := time.Now()
	err := browser.WithPage(ctx, a.browser, opts, func(page browser.Page) error {
		if err := page.Goto(ctx, a.cfg.DiscoverURL, 30*time.Second); err != nil {
			return fmt.Errorf("op=source.%s.discover.goto: %w", a.cfg.Platform, err)
		}
		a.delay(ctx)

		topics, err := sourceutil.SelectFirstMatch(ctx, page, a.cfg.Selectors.Topic)
		if err != nil {
			return fmt.Errorf("op=source.%s.discover.topic: %w", a.cfg.Platform, err)
		}
		links, _ := sourceutil.SelectFirstMatch(ctx, page, a.cfg.Selectors.ItemLink)

		for i, topic := range topics {
			if limit > 0 && len(out) >= limit {
				break
			}
			raw := RawTrend{Topic: topic}
			if i < len(links) {
				raw.URL = links[i]
			}
			out = append(out, raw)
		}
		return nil
	})
	a.finishProxyUse(entry, start, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Enrich navigates once to raw.URL (or the adapter's DiscoverURL when
// raw.URL is empty) and extracts sampleSize samples (3 when sampleSize <= 0)
// from that one page, never raising on a missing optional field. It does not
// open individual sample items, so every sample reads the same selectors on
// the same page.
func (a *PlatformAdapter) Enrich(ctx context.Context, raw RawTrend, sampleSize int) (EnrichedTrend, error) {
	if sampleSize <= 0 {
		sampleSize = 3
	}
	enriched := EnrichedTrend{RawTrend: raw}

	opts, entry := a.pageOptions()
	start := time.Now()
	err := browser.WithPage(ctx, a.browser, opts, func(page browser.Page) error {
		url := raw.URL
		if url == "" {
			url = a.cfg.DiscoverURL
		}
		if err := page.Goto(ctx, url, 30*time.Second); err != nil {
			return fmt.Errorf("op=source.%s.enrich.goto: %w", a.cfg.Platform, err)
		}
		a.delay(ctx)

		for i := 0; i < sampleSize; i++ {
			enriched.Samples = append(enriched.Samples, a.extractSample(ctx, page))
		}
		return nil
	})
	a.finishProxyUse(entry, start, err)
	if err != nil {
		return EnrichedTrend{}, err
	}
	return enriched, nil
}

func (a *PlatformAdapter) extractSample(ctx context.Context, page browser.Page) Sample {
	var s Sample
	if text, ok := sourceutil.SelectFirstMatchText(ctx, page, a.cfg.Selectors.Likes); ok {
		s.Likes = parseCountOrZero(text)
	}
	if text, ok := sourceutil.SelectFirstMatchText(ctx, page, a.cfg.Selectors.Comments); ok {
		s.Comments = parseCountOrZero(text)
	}
	if text, ok := sourceutil.SelectFirstMatchText(ctx, page, a.cfg.Selectors.Shares); ok {
		s.Shares = parseCountOrZero(text)
	}
	if text, ok := sourceutil.SelectFirstMatchText(ctx, page, a.cfg.Selectors.Views); ok {
		s.Views = parseCountOrZero(text)
	}
	if text, ok := sourceutil.SelectFirstMatchText(ctx, page, a.cfg.Selectors.Caption); ok {
		s.Caption = text
	}
	if text, ok := sourceutil.SelectFirstMatchText(ctx, page, a.cfg.Selectors.ContentType); ok {
		s.ContentType = text
	} else {
		s.ContentType = "post"
	}
	return s
}

// Aggregate rolls up enriched trends into a single TrendRecord per group of
// identical topics, keeping every sample and counting content types into a
// distribution. It does not average the numeric metrics; etl.Transform
// computes those means from the kept samples.
func (a *PlatformAdapter) Aggregate(enriched []EnrichedTrend) []TrendRecord {
	byTopic := map[string]*TrendRecord{}
	var order []string

	for _, e := range enriched {
		rec, ok := byTopic[e.Topic]
		if !ok {
			rec = &TrendRecord{
				Platform:                a.cfg.Platform,
				Topic:                   e.Topic,
				URL:                     e.URL,
				ContentTypeDistribution: map[string]int{},
				DiscoveredAt:            time.Now(),
			}
			byTopic[e.Topic] = rec
			order = append(order, e.Topic)
		}
		rec.Samples = append(rec.Samples, e.Samples...)
		for _, s := range e.Samples {
			if s.ContentType != "" {
				rec.ContentTypeDistribution[s.ContentType]++
			}
		}
	}

	records := make([]TrendRecord, 0, len(order))
	for _, topic := range order {
		records = append(records, *byTopic[topic])
	}
	return records
}

// pageOptions acquires a proxy (if a pool is configured) and returns both
// the browser options and the acquired entry, so the caller can later
// report the outcome back to the pool via finishProxyUse.
func (a *PlatformAdapter) pageOptions() (browser.Options, *domain.ProxyEntry) {
	opts := browser.DefaultOptions(browser.Options{})
	var entry *domain.ProxyEntry
	if a.proxies != nil {
		entry = a.proxies.Acquire()
		opts.Proxy = entry
	}
	return opts, entry
}

// finishProxyUse records the page operation's outcome against the acquired
// proxy entry and releases it back to the pool.
func (a *PlatformAdapter) finishProxyUse(entry *domain.ProxyEntry, start time.Time, err error) {
	if a.proxies == nil || entry == nil {
		return
	}
	if err != nil {
		a.proxies.RecordFailure(entry.Address, domain.KindOf(err))
	} else {
		a.proxies.RecordSuccess(entry.Address, time.Since(start))
	}
	a.proxies.Release(entry)
}

func (a *PlatformAdapter) delay(ctx context.Context) {
	if a.cfg.RateDelay <= 0 {
		return
	}
	if a.limiter != nil {
		_, retryAfter, err := a.limiter.Allow(ctx, "source:"+string(a.cfg.Platform), 1)
		if err == nil && retryAfter > 0 {
			time.Sleep(retryAfter)
			return
		}
	}
	time.Sleep(a.cfg.RateDelay)
}

func parseCountOrZero(text string) int64 {
	v, err := sourceutil.ParseEngagementCount(text)
	if err != nil {
		return 0
	}
	return v
}
