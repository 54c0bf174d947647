package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/trendloom/harvester/internal/adapter/observability"
	"github.com/trendloom/harvester/internal/domain"
)

// HarvestTaskHandler executes one dispatched harvest task. Implemented by
// the scheduler's run-once entry point (internal/scheduler).
type HarvestTaskHandler interface {
	HandleHarvestTask(ctx domain.Context, payload domain.HarvestTaskPayload) error
}

// Consumer polls a Redpanda/Kafka topic for harvest tasks and hands each one
// to a HarvestTaskHandler, with an adaptive poll interval and a fallback to
// the durable retry queue (domain.JobQueueRepository) on handler failure.
type Consumer struct {
	client  *kgo.Client
	handler HarvestTaskHandler
	retry   *RetryManager
	poller  *AdaptivePoller
}

// NewConsumer constructs a Consumer subscribed to topic under groupID.
func NewConsumer(brokers []string, topic, groupID string, handler HarvestTaskHandler, retry *RetryManager) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.NewConsumer: no seed brokers provided")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumerGroup(groupID),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.NewConsumer: %w", err)
	}
	return &Consumer{
		client:  client,
		handler: handler,
		retry:   retry,
		poller:  NewAdaptivePoller(time.Second),
	}, nil
}

// Run polls and processes records until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, e := range errs {
				slog.Error("redpanda fetch error", slog.String("topic", e.Topic), slog.Any("error", e.Err))
			}
			c.poller.RecordFailure()
			time.Sleep(c.poller.GetNextInterval())
			continue
		}

		fetches.EachRecord(func(rec *kgo.Record) {
			c.processRecord(ctx, rec)
		})
		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			slog.Error("redpanda commit offsets failed", slog.Any("error", err))
		}
		c.poller.RecordSuccess()
	}
}

func (c *Consumer) processRecord(ctx context.Context, rec *kgo.Record) {
	var payload domain.HarvestTaskPayload
	if err := json.Unmarshal(rec.Value, &payload); err != nil {
		slog.Error("redpanda malformed harvest task, dropping", slog.Any("error", err))
		return
	}

	if err := c.handler.HandleHarvestTask(ctx, payload); err != nil {
		kind := ClassifyTransportError(err)
		observability.RecordScrapeError(string(payload.Platform), string(kind))
		if c.retry != nil {
			if enqErr := c.retry.Defer(ctx, payload, kind); enqErr != nil {
				slog.Error("failed to defer harvest task to retry queue",
					slog.String("platform", string(payload.Platform)), slog.Any("error", enqErr))
			}
		}
		return
	}
}

// Close releases the consumer's underlying client.
func (c *Consumer) Close() error {
	if c.client != nil {
		c.client.Close()
	}
	return nil
}
