package proxypool_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendloom/harvester/internal/domain"
	"github.com/trendloom/harvester/internal/proxypool"
)

func TestNew_RequireProxiesWithNoAddressesFails(t *testing.T) {
	_, err := proxypool.New(proxypool.Config{RequireProxies: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProxy)
}

func TestNew_UnknownStrategyFails(t *testing.T) {
	_, err := proxypool.New(proxypool.Config{Addresses: []string{"p1"}, Strategy: "bogus"})
	require.Error(t, err)
}

func TestAcquireRelease_RoundRobinCyclesEntries(t *testing.T) {
	pool, err := proxypool.New(proxypool.Config{Addresses: []string{"p1", "p2"}, Strategy: proxypool.StrategyRoundRobin})
	require.NoError(t, err)

	first := pool.Acquire()
	require.NotNil(t, first)
	pool.Release(first)
	second := pool.Acquire()
	require.NotNil(t, second)
	pool.Release(second)

	assert.NotEqual(t, first.Address, second.Address)
}

func TestRecordFailure_OpensCircuitAtThreshold(t *testing.T) {
	pool, err := proxypool.New(proxypool.Config{
		Addresses:               []string{"p1"},
		CircuitBreakerThreshold: 2,
		CircuitBreakerTimeout:   time.Hour,
		MinHealth:               0,
	})
	require.NoError(t, err)

	pool.RecordFailure("p1", domain.KindNetwork)
	pool.RecordFailure("p1", domain.KindNetwork)

	// Circuit is open and timeout hasn't elapsed: no eligible entry.
	assert.Nil(t, pool.Acquire())
}

func TestRecordSuccess_ClosesCircuitAndRestoresScore(t *testing.T) {
	pool, err := proxypool.New(proxypool.Config{Addresses: []string{"p1"}, MinHealth: 0})
	require.NoError(t, err)

	pool.RecordFailure("p1", domain.KindAuth) // -10
	pool.RecordSuccess("p1", 10*time.Millisecond)

	entry := pool.Acquire()
	require.NotNil(t, entry)
	assert.Equal(t, domain.ProxyCircuitClosed, entry.CircuitState)
}

func TestExecuteWithRetry_SucceedsOnSecondAttempt(t *testing.T) {
	pool, err := proxypool.New(proxypool.Config{Addresses: []string{"p1"}})
	require.NoError(t, err)

	attempts := 0
	err = pool.ExecuteWithRetry(context.Background(), 3, func(error) domain.ErrorKind { return domain.KindNetwork }, func(ctx context.Context, entry *domain.ProxyEntry) error {
		attempts++
		if attempts == 1 {
			return assertErr{}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestExecuteWithRetry_FailsAfterBudgetExhausted(t *testing.T) {
	pool, err := proxypool.New(proxypool.Config{Addresses: []string{"p1"}})
	require.NoError(t, err)

	err = pool.ExecuteWithRetry(context.Background(), 1, func(error) domain.ErrorKind { return domain.KindNetwork }, func(ctx context.Context, entry *domain.ProxyEntry) error {
		return assertErr{}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProxy)
}

func TestExecuteWithRetry_NoProxyFails(t *testing.T) {
	pool, err := proxypool.New(proxypool.Config{})
	require.NoError(t, err)

	err = pool.ExecuteWithRetry(context.Background(), 0, func(error) domain.ErrorKind { return domain.KindNetwork }, func(ctx context.Context, entry *domain.ProxyEntry) error {
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProxy)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
