package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/trendloom/harvester/internal/adapter/queue/redpanda"
	"github.com/trendloom/harvester/internal/adapter/repo/postgres"
	"github.com/trendloom/harvester/internal/adapter/source"
	"github.com/trendloom/harvester/internal/browser"
	"github.com/trendloom/harvester/internal/config"
	"github.com/trendloom/harvester/internal/domain"
	"github.com/trendloom/harvester/internal/etl"
	"github.com/trendloom/harvester/internal/proxypool"
	"github.com/trendloom/harvester/internal/runlog"
	"github.com/trendloom/harvester/internal/scheduler"
	"github.com/trendloom/harvester/internal/scorer"
	"github.com/trendloom/harvester/internal/sentiment"
	"github.com/trendloom/harvester/internal/service/ratelimiter"
	"github.com/trendloom/harvester/internal/snapshot"
)

// deps bundles every collaborator a harvester subcommand wires together. It
// is built once per process invocation and shared across whichever
// subcommand is running, so that run, scheduler and worker share one wiring
// path.
type deps struct {
	cfg      config.Config
	pool     *pgxpool.Pool
	redis    *redis.Client
	proxies  *proxypool.Pool
	settings domain.SchedulerSettingRepository
	sources  domain.SourceRepository
	trends   domain.TrendRepository
	versions domain.TrendVersionRepository
	metrics  domain.MetricRepository
	runLogs  domain.RunLogRepository
	jobQueue domain.JobQueueRepository

	weights      map[domain.Platform]scorer.Weights
	pipeline     *etl.Pipeline
	recorder     *runlog.Recorder
	sched        *scheduler.Scheduler
	retryManager *redpanda.RetryManager
}

// buildDeps connects to Postgres and (if enabled) Redis, constructs the
// proxy pool and source adapters, and assembles the ETL pipeline and
// scheduler that every subcommand drives.
func buildDeps(ctx context.Context, cfg config.Config) (*deps, error) {
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("op=harvester.buildDeps.pool: %w", err)
	}

	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("op=harvester.buildDeps.migrate: %w", err)
		}
	}

	proxies, err := proxypool.New(proxypool.Config{
		Addresses:               cfg.ProxyList,
		Strategy:                proxypool.Strategy(cfg.ProxyRotationStrategy),
		CircuitBreakerThreshold: cfg.CircuitBreakerThreshold,
		CircuitBreakerTimeout:   cfg.CircuitBreakerTimeout,
		RequireProxies:          cfg.RequireProxies,
	})
	if err != nil {
		pool.Close()
		// Wrapped with errStartupProxyUnavailable, not domain.ErrProxy
		// directly, so that a later runtime proxy-exhaustion error (which
		// also wraps domain.ErrProxy) does not get mistaken for this
		// startup-only failure mode when mapping to an exit code.
		return nil, fmt.Errorf("op=harvester.buildDeps.proxypool: %w: %w", errStartupProxyUnavailable, err)
	}

	d := &deps{
		cfg:      cfg,
		pool:     pool,
		proxies:  proxies,
		settings: postgres.NewSchedulerSettingRepo(pool),
		sources:  postgres.NewSourceRepo(pool),
		trends:   postgres.NewTrendRepo(pool),
		versions: postgres.NewTrendVersionRepo(pool),
		metrics:  postgres.NewMetricRepo(pool),
		runLogs:  postgres.NewRunLogRepo(pool),
		jobQueue: postgres.NewJobQueueRepo(pool),
	}
	d.recorder = runlog.NewRecorder(d.runLogs)

	var limiter ratelimiter.Limiter
	if cfg.RateLimiterEnabled {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("op=harvester.buildDeps.redis_url: %w", err)
		}
		d.redis = redis.NewClient(opts)
		limiter = ratelimiter.NewRedisLuaLimiter(d.redis, pool, buildBuckets(cfg))
	}

	bf := buildBrowserFactory(cfg)

	defaults, err := config.LoadPlatformDefaults()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("op=harvester.buildDeps.platform_defaults: %w", err)
	}
	rateDelays := make(map[domain.Platform]time.Duration, len(defaults))
	d.weights = make(map[domain.Platform]scorer.Weights, len(defaults))
	for name, pd := range defaults {
		platform := domain.Platform(name)
		rateDelays[platform] = time.Duration(pd.RateDelayMS) * time.Millisecond
		d.weights[platform] = scorer.WeightsFor(platform, pd.ScoreWeights)
	}

	adapters := source.BuildAll(bf, proxies, limiter, rateDelays, cfg.MinDiscoveryItems, cfg.MaxDiscoveryRetries)

	analyzer := sentiment.NewAnalyzer(cfg)

	d.pipeline = &etl.Pipeline{
		Trends:         d.trends,
		Metrics:        d.metrics,
		Snapshotter:    snapshot.New(d.trends, d.versions),
		Sentiment:      analyzer,
		DedupeStrategy: cfg.DedupeStrategy,
		ChunkSize:      cfg.LoadChunkSize,
		MaxRetries:     cfg.LoadMaxRetries,
	}

	d.sched = scheduler.New(d.settings, adapters, d.weights, d.pipeline, d.recorder, nil)
	d.sched.ReconcileInterval = cfg.ReconcileInterval
	d.sched.ReloadInterval = cfg.SchedulerReloadInterval
	d.sched.HarvestLimit = cfg.HarvestLimit
	d.sched.EnrichSampleSize = cfg.EnrichSampleSize
	d.sched.FanOutConcurrency = cfg.FanOutConcurrency

	// The scheduler's own Scheduler.HandleHarvestTask is the retry queue's
	// replay handler, closing the loop between C11 and C13: a task deferred
	// here is replayed through the exact same RunOnce path later.
	d.retryManager = redpanda.NewRetryManager(d.jobQueue, d.sched, nil, cfg.RetryMaxRetries)
	d.sched.Defer = d.retryManager.Defer

	return d, nil
}

func buildBrowserFactory(cfg config.Config) browser.Factory {
	if cfg.BrowserEndpoint == "" {
		slog.Warn("BROWSER_ENDPOINT not set, running against the in-memory stub browser factory")
		return browser.NewStubFactory(nil)
	}
	return browser.NewRemoteFactory(cfg.BrowserEndpoint)
}

func buildBuckets(cfg config.Config) map[string]ratelimiter.BucketConfig {
	buckets := make(map[string]ratelimiter.BucketConfig, len(domain.AllPlatforms()))
	defaults, err := config.LoadPlatformDefaults()
	if err != nil {
		return buckets
	}
	for name, pd := range defaults {
		perMinute := 60
		if pd.RateDelayMS > 0 {
			perMinute = 60000 / pd.RateDelayMS
		}
		buckets[name] = ratelimiter.NewBucketConfigFromPerMinute(perMinute)
	}
	return buckets
}

// close releases every connection deps opened.
func (d *deps) close() {
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.pool != nil {
		d.pool.Close()
	}
}

// platformKeys lists the platforms a weights map was built for, so the
// decay sweeper covers exactly the platforms this process knows how to
// adapt rather than the full domain.AllPlatforms() list.
func platformKeys(weights map[domain.Platform]scorer.Weights) []domain.Platform {
	out := make([]domain.Platform, 0, len(weights))
	for p := range weights {
		out = append(out, p)
	}
	return out
}
