// Package redpanda provides Redpanda/Kafka transport for the harvest retry
// queue. Postgres (internal/domain.JobQueueRepository) is the durable
// source of truth; this package is the optional fan-out delivery fabric used
// when a harvest task should be dispatched to a separate worker process
// instead of being run inline.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/trendloom/harvester/internal/domain"
)

// Producer wraps a Kafka/Redpanda producer for harvest task dispatch.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer constructs a Producer publishing to topic, creating it if absent.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.NewProducer: no seed brokers provided")
	}
	if topic == "" {
		return nil, fmt.Errorf("op=redpanda.NewProducer: topic required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1_000_000),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.NewProducer: %w", err)
	}

	ctx := context.Background()
	if err := createTopicIfNotExists(ctx, client, topic, 3, 1); err != nil {
		slog.Warn("failed to pre-create retry topic, it may already exist",
			slog.String("topic", topic), slog.Any("error", err))
	}

	return &Producer{client: client, topic: topic}, nil
}

// EnqueueHarvestTask publishes a harvest task payload, keyed by platform so
// a single platform's tasks land on the same partition and stay ordered.
func (p *Producer) EnqueueHarvestTask(ctx domain.Context, payload domain.HarvestTaskPayload) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("op=redpanda.enqueue_harvest_task.marshal: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(payload.Platform),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "platform", Value: []byte(payload.Platform)},
			{Key: "run_version_id", Value: []byte(payload.RunVersionID)},
		},
	}

	res := p.client.ProduceSync(ctx, record)
	if err := res.FirstErr(); err != nil {
		return fmt.Errorf("op=redpanda.enqueue_harvest_task.produce: %w", err)
	}

	return nil
}

// Close releases the producer's underlying client.
func (p *Producer) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}
