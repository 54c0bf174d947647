package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendloom/harvester/internal/observability"
)

func TestIntegratedObservableClient_ExecuteWithMetrics(t *testing.T) {
	c := observability.NewIntegratedObservableClient(
		observability.ConnectionTypeProxy, observability.OperationTypeScrape,
		"proxy-1", "trend-harvester", time.Second, 100*time.Millisecond, 5*time.Second,
	)

	err := c.ExecuteWithMetrics(context.Background(), "fetch", func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	assert.True(t, c.IsHealthy())
}

func TestIntegratedObservableClient_RecordsFailure(t *testing.T) {
	c := observability.NewIntegratedObservableClient(
		observability.ConnectionTypeBrowser, observability.OperationTypeScrape,
		"browser-1", "trend-harvester", time.Second, 100*time.Millisecond, 5*time.Second,
	)

	err := c.ExecuteWithMetrics(context.Background(), "scrape", func(ctx context.Context) error {
		return errors.New("navigation failed")
	})
	require.Error(t, err)
}
