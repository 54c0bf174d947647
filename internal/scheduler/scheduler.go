// Package scheduler implements the per-platform scheduler and worker
// (C11): a reconciliation loop that launches a harvest run for any
// enabled platform whose next_run_at has passed, serialized per platform
// (P5) but concurrent across platforms, plus the shared run-once entry
// point that backs the scheduler loop, the `run --once` CLI path, and
// redpanda.HarvestTaskHandler.
//
// Grounded on internal/runlog's Recorder/StuckRunSweeper split: the
// reconcile loop here plays the same role as StuckRunSweeper.Run (a
// ticker-driven periodic sweep), and RunOnce plays the role of a single
// request-scoped operation wrapped by Recorder.Start/Finish.
package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/trendloom/harvester/internal/adapter/source"
	"github.com/trendloom/harvester/internal/domain"
	"github.com/trendloom/harvester/internal/etl"
	"github.com/trendloom/harvester/internal/runlog"
	"github.com/trendloom/harvester/internal/scorer"
)

var tracer = otel.Tracer("github.com/trendloom/harvester/internal/scheduler")

// DeferFunc re-enqueues a harvest task onto the offline/retry queue (C13).
type DeferFunc func(ctx domain.Context, payload domain.HarvestTaskPayload, kind domain.ErrorKind) error

// Scheduler reconciles scheduler_settings against a live ticker,
// serializing runs per platform and fanning out across platforms.
type Scheduler struct {
	Settings domain.SchedulerSettingRepository
	Adapters map[domain.Platform]source.Adapter
	Weights  map[domain.Platform]scorer.Weights
	Pipeline *etl.Pipeline
	RunLogs  *runlog.Recorder
	Defer    DeferFunc

	ReconcileInterval time.Duration
	ReloadInterval    time.Duration
	HarvestLimit      int
	EnrichSampleSize  int
	FanOutConcurrency int

	running sync.Map // domain.Platform -> struct{}
}

// New constructs a Scheduler with spec.md §4.11 defaults for any zero
// duration/limit field.
func New(settings domain.SchedulerSettingRepository, adapters map[domain.Platform]source.Adapter, weights map[domain.Platform]scorer.Weights, pipeline *etl.Pipeline, runLogs *runlog.Recorder, deferFn DeferFunc) *Scheduler {
	return &Scheduler{
		Settings:          settings,
		Adapters:          adapters,
		Weights:           weights,
		Pipeline:          pipeline,
		RunLogs:           runLogs,
		Defer:             deferFn,
		ReconcileInterval: time.Minute,
		ReloadInterval:    5 * time.Minute,
		HarvestLimit:      50,
		EnrichSampleSize:  3,
		FanOutConcurrency: 6,
	}
}

// Run blocks, reconciling scheduler_settings against the ticker until ctx
// is cancelled. Settings are reloaded from storage on every tick so that
// an admin PUT to /settings/{platform} (frequency_hours, enabled) takes
// effect without a process restart (P6).
func (s *Scheduler) Run(ctx domain.Context) {
	if s.ReconcileInterval <= 0 {
		s.ReconcileInterval = time.Minute
	}
	ticker := time.NewTicker(s.ReconcileInterval)
	defer ticker.Stop()

	s.reconcileOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reconcileOnce(ctx)
		}
	}
}

func (s *Scheduler) reconcileOnce(ctx domain.Context) {
	ctx, span := tracer.Start(ctx, "scheduler.reconcileOnce")
	defer span.End()

	settings, err := s.Settings.List(ctx)
	if err != nil {
		slog.Error("scheduler failed to list settings", slog.Any("error", err))
		span.RecordError(err)
		return
	}

	now := time.Now().UTC()
	launched := 0
	for _, setting := range settings {
		if !setting.Enabled {
			continue
		}
		if setting.NextRunAt != nil && setting.NextRunAt.After(now) {
			continue
		}
		if _, inFlight := s.running.LoadOrStore(setting.Platform, struct{}{}); inFlight {
			continue // P5: at most one run per platform at any instant
		}
		launched++
		go func(platform domain.Platform) {
			defer s.running.Delete(platform)
			if err := s.RunOnce(ctx, domain.HarvestTaskPayload{Platform: platform, Limit: s.HarvestLimit}); err != nil {
				slog.Error("scheduled run failed", slog.String("platform", string(platform)), slog.Any("error", err))
			}
		}(setting.Platform)
	}
	span.SetAttributes(attribute.Int("launched", launched))
}

// HandleHarvestTask implements redpanda.HarvestTaskHandler: it is the
// shared entry point for a Kafka-dispatched task and for retry-queue
// replay via RetryManager.DrainDue.
func (s *Scheduler) HandleHarvestTask(ctx domain.Context, payload domain.HarvestTaskPayload) error {
	return s.RunOnce(ctx, payload)
}

// RunOnce executes Discover -> Enrich -> Aggregate -> etl.Pipeline.Load
// for one platform and records the outcome as a RunLog row.
func (s *Scheduler) RunOnce(ctx domain.Context, payload domain.HarvestTaskPayload) error {
	ctx, span := tracer.Start(ctx, "scheduler.RunOnce")
	defer span.End()
	span.SetAttributes(attribute.String("platform", string(payload.Platform)))

	adapter, err := source.For(s.Adapters, payload.Platform)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("op=scheduler.RunOnce: %w", err)
	}

	limit := payload.Limit
	if limit <= 0 {
		limit = s.HarvestLimit
	}

	runVersionID := payload.RunVersionID
	if runVersionID == "" {
		runVersionID = newRunVersionID()
	}

	var runLogID string
	if s.RunLogs != nil {
		runLogID, err = s.RunLogs.Start(ctx, payload.Platform, runVersionID)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("op=scheduler.RunOnce.start_runlog: %w", err)
		}
	}

	records, scraped, harvestErr := s.harvest(ctx, adapter, limit)
	if harvestErr != nil {
		span.RecordError(harvestErr)
		s.finish(ctx, runLogID, domain.RunFailed, scraped, 0, 0, harvestErr)
		return fmt.Errorf("op=scheduler.RunOnce.harvest: %w", harvestErr)
	}

	weights := s.Weights[payload.Platform]
	versionDate := time.Now().UTC().Truncate(24 * time.Hour)

	var deferFn etl.DeferFunc
	if s.Defer != nil {
		deferFn = func(ctx domain.Context, kind domain.ErrorKind) error {
			return s.Defer(ctx, payload, kind)
		}
	}

	result, err := s.Pipeline.Load(ctx, payload.Platform, versionDate, runVersionID, records, weights, deferFn)
	if err != nil {
		span.RecordError(err)
		s.finish(ctx, runLogID, domain.RunFailed, scraped, result.Loaded, result.Invalid, err)
		return fmt.Errorf("op=scheduler.RunOnce.load: %w", err)
	}

	status := domain.RunCompleted
	if result.Invalid > 0 && result.Loaded > 0 {
		status = domain.RunCompletedWithWarnings
	} else if result.Loaded == 0 && scraped > 0 {
		status = domain.RunFailed
	}
	s.finish(ctx, runLogID, status, scraped, result.Loaded, result.Invalid, nil)

	if err := s.advanceSchedule(ctx, payload.Platform, status == domain.RunCompleted || status == domain.RunCompletedWithWarnings); err != nil {
		slog.Error("failed to advance scheduler_settings", slog.String("platform", string(payload.Platform)), slog.Any("error", err))
	}

	span.SetAttributes(
		attribute.Int("scraped", scraped),
		attribute.Int("loaded", result.Loaded),
		attribute.Int("invalid", result.Invalid),
	)
	return nil
}

// harvest runs Discover, then Enrich for every discovered topic (bounded
// by FanOutConcurrency), then Aggregate.
func (s *Scheduler) harvest(ctx domain.Context, a source.Adapter, limit int) ([]source.TrendRecord, int, error) {
	raws, err := a.Discover(ctx, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("op=scheduler.harvest.discover: %w", err)
	}

	sampleSize := s.EnrichSampleSize
	if sampleSize <= 0 {
		sampleSize = 3
	}
	fanOut := s.FanOutConcurrency
	if fanOut <= 0 {
		fanOut = 6
	}

	enriched := make([]source.EnrichedTrend, len(raws))
	sem := make(chan struct{}, fanOut)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, raw := range raws {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, raw source.RawTrend) {
			defer wg.Done()
			defer func() { <-sem }()
			e, err := a.Enrich(ctx, raw, sampleSize)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			enriched[i] = e
		}(i, raw)
	}
	wg.Wait()

	if firstErr != nil && allZero(enriched) {
		return nil, len(raws), fmt.Errorf("op=scheduler.harvest.enrich: %w", firstErr)
	}

	nonEmpty := make([]source.EnrichedTrend, 0, len(enriched))
	for _, e := range enriched {
		if e.Topic != "" {
			nonEmpty = append(nonEmpty, e)
		}
	}

	return a.Aggregate(nonEmpty), len(raws), nil
}

func allZero(enriched []source.EnrichedTrend) bool {
	for _, e := range enriched {
		if e.Topic != "" {
			return false
		}
	}
	return true
}

func (s *Scheduler) finish(ctx domain.Context, runLogID string, status domain.RunStatus, scraped, loaded, invalid int, runErr error) {
	if s.RunLogs == nil || runLogID == "" {
		return
	}
	var msg, trace string
	if runErr != nil {
		msg = runErr.Error()
		trace = fmt.Sprintf("%+v", runErr)
	}
	if err := s.RunLogs.Finish(ctx, runLogID, status, scraped, loaded, invalid, msg, trace); err != nil {
		slog.Error("failed to finish runlog", slog.String("run_log_id", runLogID), slog.Any("error", err))
	}
}

func (s *Scheduler) advanceSchedule(ctx domain.Context, platform domain.Platform, success bool) error {
	setting, err := s.Settings.Get(ctx, platform)
	if err != nil {
		return fmt.Errorf("op=scheduler.advanceSchedule.get: %w", err)
	}
	now := time.Now().UTC()
	setting.LastRunAt = &now
	setting.RunCount++
	if success {
		setting.SuccessCount++
	} else {
		setting.FailureCount++
	}
	next := setting.ComputeNextRunAt(now)
	setting.NextRunAt = &next
	return s.Settings.Upsert(ctx, setting)
}
