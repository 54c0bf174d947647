package redpanda_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendloom/harvester/internal/adapter/queue/redpanda"
	"github.com/trendloom/harvester/internal/domain"
)

type fakeJobQueueRepo struct {
	items      map[string]domain.QueueItem
	markErr    error
	enqueueErr error
}

func newFakeJobQueueRepo() *fakeJobQueueRepo {
	return &fakeJobQueueRepo{items: map[string]domain.QueueItem{}}
}

func (f *fakeJobQueueRepo) Enqueue(_ context.Context, item domain.QueueItem) (string, error) {
	if f.enqueueErr != nil {
		return "", f.enqueueErr
	}
	f.items[item.ID] = item
	return item.ID, nil
}

func (f *fakeJobQueueRepo) DueForRetry(_ context.Context, now time.Time, limit int) ([]domain.QueueItem, error) {
	var out []domain.QueueItem
	for _, it := range f.items {
		if !it.NextAttemptAt.After(now) {
			out = append(out, it)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeJobQueueRepo) MarkAttempt(_ context.Context, id string, nextAttemptAt time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	item, ok := f.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	item.Attempts++
	item.NextAttemptAt = nextAttemptAt
	f.items[id] = item
	return nil
}

func (f *fakeJobQueueRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type fakeHandler struct {
	err     error
	handled []domain.HarvestTaskPayload
}

func (h *fakeHandler) HandleHarvestTask(_ context.Context, payload domain.HarvestTaskPayload) error {
	h.handled = append(h.handled, payload)
	return h.err
}

func TestRetryManager_DeferThenDrainSucceeds(t *testing.T) {
	queue := newFakeJobQueueRepo()
	handler := &fakeHandler{}
	rm := redpanda.NewRetryManager(queue, handler, nil, 5)

	require.NoError(t, rm.Defer(context.Background(), domain.HarvestTaskPayload{Platform: domain.PlatformTikTok}, domain.KindTimeout))
	require.Len(t, queue.items, 1)

	// Not due yet (backoff is 1m in the future).
	n, err := rm.DrainDue(context.Background(), time.Now().UTC(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = rm.DrainDue(context.Background(), time.Now().UTC().Add(2*time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, handler.handled, 1)
	assert.Empty(t, queue.items, "successful replay removes the item")
}

func TestRetryManager_DrainDue_RescheduleOnFailure(t *testing.T) {
	queue := newFakeJobQueueRepo()
	handler := &fakeHandler{err: assertErr{}}
	rm := redpanda.NewRetryManager(queue, handler, nil, 5)

	require.NoError(t, rm.Defer(context.Background(), domain.HarvestTaskPayload{Platform: domain.PlatformYouTube}, domain.KindNetwork))

	due := time.Now().UTC().Add(2 * time.Minute)
	n, err := rm.DrainDue(context.Background(), due, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, queue.items, 1)
	for _, item := range queue.items {
		assert.Equal(t, 1, item.Attempts)
		assert.True(t, item.NextAttemptAt.After(due))
	}
}

func TestRetryManager_DrainDue_ExhaustedGoesToDLQ(t *testing.T) {
	queue := newFakeJobQueueRepo()
	handler := &fakeHandler{}
	rm := redpanda.NewRetryManager(queue, handler, redpanda.NewDLQLogger(nil, ""), 1)

	payload := domain.HarvestTaskPayload{Platform: domain.PlatformX}
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	queue.items["exhausted"] = domain.QueueItem{ID: "exhausted", Payload: b, Attempts: 1, NextAttemptAt: time.Now().UTC().Add(-time.Minute)}

	n, err := rm.DrainDue(context.Background(), time.Now().UTC(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, queue.items)
	assert.Empty(t, handler.handled, "exhausted items are not replayed")
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
