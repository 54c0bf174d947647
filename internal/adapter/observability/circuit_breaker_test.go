package observability_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendloom/harvester/internal/adapter/observability"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := observability.NewCircuitBreaker("test-proxy", 3, 50*time.Millisecond)

	failing := errors.New("boom")
	for i := 0; i < 3; i++ {
		err := cb.Call(func() error { return failing })
		require.Error(t, err)
	}
	assert.True(t, cb.IsOpen())

	err := cb.Call(func() error { return nil })
	require.Error(t, err, "open circuit should reject calls")
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	cb := observability.NewCircuitBreaker("test-proxy-2", 1, 10*time.Millisecond)
	require.Error(t, cb.Call(func() error { return errors.New("fail") }))
	assert.True(t, cb.IsOpen())

	time.Sleep(20 * time.Millisecond)

	for i := 0; i < 3; i++ {
		require.NoError(t, cb.Call(func() error { return nil }))
	}
	assert.True(t, cb.IsClosed())
}

func TestCircuitBreakerManager_GetOrCreate(t *testing.T) {
	mgr := observability.NewCircuitBreakerManager()
	a := mgr.GetOrCreate("p1", 5, time.Minute)
	b := mgr.GetOrCreate("p1", 5, time.Minute)
	assert.Same(t, a, b)
}
