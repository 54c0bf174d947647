package redpanda

import (
	"encoding/json"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/trendloom/harvester/internal/domain"
)

// DLQLogger records permanent-failure harvest tasks: items whose retry
// queue attempts were exhausted. It always logs; publishing to a dead-letter
// topic is best-effort when a producer client is configured.
type DLQLogger struct {
	client *kgo.Client
	topic  string
}

// NewDLQLogger constructs a DLQLogger. client may be nil, in which case
// permanent failures are only logged, never published.
func NewDLQLogger(client *kgo.Client, topic string) *DLQLogger {
	return &DLQLogger{client: client, topic: topic}
}

// LogPermanentFailure records item as permanently failed.
func (d *DLQLogger) LogPermanentFailure(ctx domain.Context, item domain.QueueItem) {
	slog.Error("harvest task permanently failed, moving to dead letter",
		slog.String("id", item.ID),
		slog.String("error_kind", item.ErrorKind),
		slog.Int("attempts", item.Attempts))

	if d.client == nil || d.topic == "" {
		return
	}

	b, err := json.Marshal(item)
	if err != nil {
		slog.Error("failed to marshal dead-letter item", slog.String("id", item.ID), slog.Any("error", err))
		return
	}
	record := &kgo.Record{Topic: d.topic, Key: []byte(item.ID), Value: b}
	if res := d.client.ProduceSync(ctx, record); res.FirstErr() != nil {
		slog.Error("failed to publish dead-letter record", slog.String("id", item.ID), slog.Any("error", res.FirstErr()))
	}
}
