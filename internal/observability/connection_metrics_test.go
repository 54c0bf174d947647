package observability_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trendloom/harvester/internal/observability"
)

func TestConnectionMetrics_RecordSuccessAndFailure(t *testing.T) {
	m := observability.NewConnectionMetrics(observability.ConnectionTypeProxy, observability.OperationTypeScrape, "1.2.3.4:8080")

	m.RecordRequest()
	m.RecordSuccess(50 * time.Millisecond)
	assert.Equal(t, int64(1), m.TotalRequests)
	assert.Equal(t, int64(1), m.SuccessRequests)
	assert.True(t, m.IsHealthy())

	m.RecordRequest()
	m.RecordFailure(errors.New("proxy refused"), 10*time.Millisecond)
	assert.Equal(t, int64(1), m.FailureRequests)

	stats := m.GetStats()
	assert.Equal(t, "proxy", stats["connection_type"])
}

func TestConnectionMetrics_OpensCircuitAfterFailures(t *testing.T) {
	m := observability.NewConnectionMetrics(observability.ConnectionTypeBrowser, observability.OperationTypeScrape, "browser-1")
	for i := 0; i < 5; i++ {
		m.RecordRequest()
		m.RecordFailure(errors.New("timeout"), time.Millisecond)
	}
	assert.False(t, m.IsHealthy())
}

func TestConnectionMetrics_Reset(t *testing.T) {
	m := observability.NewConnectionMetrics(observability.ConnectionTypeDatabase, observability.OperationTypeQuery, "db")
	m.RecordRequest()
	m.RecordSuccess(time.Millisecond)
	m.Reset()
	assert.Equal(t, int64(0), m.TotalRequests)
}
