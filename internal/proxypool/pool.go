// Package proxypool implements the rotating outbound-proxy pool (C4): a set
// of ProxyEntry values with per-entry health scoring and circuit breaking,
// selected by a configurable rotation strategy. It generalizes the
// closed/open/half-open state machine in
// internal/adapter/observability/circuit_breaker.go from "one breaker per
// outbound HTTP client" to "one breaker per ProxyEntry", and the EWMA-style
// adjustment in internal/observability/adaptive_timeout.go into a latency
// factor feeding the health score.
package proxypool

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/trendloom/harvester/internal/domain"
)

// Strategy selects which eligible entry acquire() returns.
type Strategy string

// Supported rotation strategies.
const (
	StrategyHealthBased Strategy = "health_based"
	StrategyRoundRobin  Strategy = "round_robin"
	StrategyRandom      Strategy = "random"
)

const (
	backoffBase = time.Second
	backoffMax  = 60 * time.Second

	penaltyTimeout = 3
	penaltyAuth    = 10
	penaltyOther   = 5
)

// state tracks one ProxyEntry plus the pool-internal bookkeeping that the
// spec keeps out of the persisted entity (ProxyEntry is process-local and
// never written to storage).
type state struct {
	entry          domain.ProxyEntry
	inFlight       int
	consecFails    int
	backoffUntil   time.Time
	avgLatencyMS   float64
}

// Config configures a Pool from parsed application configuration.
type Config struct {
	Addresses               []string
	Strategy                Strategy
	MaxConcurrentPerEntry   int
	MinHealth               float64
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
	RequireProxies          bool
}

// Pool is a thread-safe rotating pool of outbound proxies.
type Pool struct {
	mu       sync.Mutex
	states   []*state
	strategy Strategy
	cfg      Config
	rrIndex  int
	rng      *rand.Rand
}

// New builds a Pool from cfg. If RequireProxies is set and Addresses is
// empty, it returns an error (fail startup, per spec.md §4.4).
func New(cfg Config) (*Pool, error) {
	if cfg.MaxConcurrentPerEntry <= 0 {
		cfg.MaxConcurrentPerEntry = 4
	}
	if cfg.MinHealth <= 0 {
		cfg.MinHealth = 10
	}
	if cfg.CircuitBreakerThreshold <= 0 {
		cfg.CircuitBreakerThreshold = 5
	}
	if cfg.CircuitBreakerTimeout <= 0 {
		cfg.CircuitBreakerTimeout = 5 * time.Minute
	}
	switch cfg.Strategy {
	case StrategyHealthBased, StrategyRoundRobin, StrategyRandom:
	case "":
		cfg.Strategy = StrategyHealthBased
	default:
		return nil, fmt.Errorf("op=proxypool.New: unknown strategy %q", cfg.Strategy)
	}
	if cfg.RequireProxies && len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("op=proxypool.New: %w: require_proxies set but no addresses configured", domain.ErrProxy)
	}

	states := make([]*state, 0, len(cfg.Addresses))
	for _, addr := range cfg.Addresses {
		states = append(states, &state{entry: domain.ProxyEntry{Address: addr, CircuitState: domain.ProxyCircuitClosed, HealthScore: 100}})
	}

	return &Pool{states: states, strategy: cfg.Strategy, cfg: cfg, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}, nil
}

// Len reports how many entries are configured in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.states)
}

// Acquire returns the best eligible entry per the configured strategy, or
// nil if none is eligible right now.
func (p *Pool) Acquire() *domain.ProxyEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	eligible := make([]*state, 0, len(p.states))
	for _, s := range p.states {
		if !p.isEligible(s, now) {
			continue
		}
		eligible = append(eligible, s)
	}
	if len(eligible) == 0 {
		return nil
	}

	var chosen *state
	switch p.strategy {
	case StrategyRoundRobin:
		p.rrIndex = p.rrIndex % len(eligible)
		chosen = eligible[p.rrIndex]
		p.rrIndex++
	case StrategyRandom:
		chosen = eligible[p.rng.Intn(len(eligible))]
	default: // health_based
		best := -1.0
		for _, s := range eligible {
			h := p.healthScore(s, now)
			if h > best {
				best = h
				chosen = s
			}
		}
	}

	chosen.inFlight++
	chosen.entry.LastUsedAt = now
	entry := chosen.entry
	return &entry
}

func (p *Pool) isEligible(s *state, now time.Time) bool {
	if s.entry.CircuitState == domain.ProxyCircuitOpen {
		if now.Sub(s.entry.OpenedAt) < p.cfg.CircuitBreakerTimeout {
			return false
		}
		// Transition to half-open on the next eligibility check past the timeout.
		s.entry.CircuitState = domain.ProxyCircuitHalfOpen
	}
	if s.inFlight >= p.cfg.MaxConcurrentPerEntry {
		return false
	}
	if now.Before(s.backoffUntil) {
		return false
	}
	if s.entry.HealthScore < p.cfg.MinHealth {
		return false
	}
	return true
}

// healthScore returns the entry's selection score for the health_based
// strategy: its discrete running score (adjusted by record_success/
// record_failure deltas), penalized while its circuit is open.
func (p *Pool) healthScore(s *state, _ time.Time) float64 {
	score := s.entry.HealthScore
	if s.entry.CircuitState == domain.ProxyCircuitOpen {
		score -= 50
	}
	return score
}

// DerivedHealthScore computes the weighted health-score derivation spec.md
// §4.4 specifies "when requested" (e.g. for an admin status endpoint),
// blending success rate, recency, and latency rather than the discrete
// running score acquire() uses for eligibility.
func (p *Pool) DerivedHealthScore(address string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.find(address)
	if s == nil {
		return 0
	}
	now := time.Now()
	total := s.entry.SuccessCount + s.entry.FailureCount
	successRate := 1.0
	if total > 0 {
		successRate = float64(s.entry.SuccessCount) / float64(total)
	}
	recencyFactor := 0.0
	if !s.entry.LastUsedAt.IsZero() {
		age := now.Sub(s.entry.LastUsedAt)
		recencyFactor = 1.0 - clamp01(age.Minutes()/30.0)
	}
	latencyFactor := 1.0
	if s.avgLatencyMS > 0 {
		latencyFactor = 1.0 - clamp01(s.avgLatencyMS/5000.0)
	}
	score := 100 * (0.6*successRate + 0.2*recencyFactor + 0.2*latencyFactor)
	if s.entry.CircuitState == domain.ProxyCircuitOpen {
		score -= 50
	}
	return clamp01(score/100) * 100
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Release decrements an entry's in-flight count.
func (p *Pool) Release(entry *domain.ProxyEntry) {
	if entry == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if s := p.find(entry.Address); s != nil && s.inFlight > 0 {
		s.inFlight--
	}
}

// RecordSuccess updates score, resets failure streaks, and closes the
// circuit for the entry at address.
func (p *Pool) RecordSuccess(address string, latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.find(address)
	if s == nil {
		return
	}
	s.entry.SuccessCount++
	s.entry.ConsecutiveFails = 0
	s.consecFails = 0
	s.backoffUntil = time.Time{}
	s.entry.CircuitState = domain.ProxyCircuitClosed
	s.entry.HealthScore += 2
	if s.entry.HealthScore > 100 {
		s.entry.HealthScore = 100
	}
	if s.avgLatencyMS == 0 {
		s.avgLatencyMS = float64(latency.Milliseconds())
	} else {
		s.avgLatencyMS = 0.8*s.avgLatencyMS + 0.2*float64(latency.Milliseconds())
	}
}

// RecordFailure penalizes the entry at address by kind and, on crossing the
// circuit breaker threshold, opens its circuit.
func (p *Pool) RecordFailure(address string, kind domain.ErrorKind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.find(address)
	if s == nil {
		return
	}

	penalty := penaltyOther
	switch kind {
	case domain.KindTimeout:
		penalty = penaltyTimeout
	case domain.KindAuth:
		penalty = penaltyAuth
	}

	s.entry.FailureCount++
	s.entry.ConsecutiveFails++
	s.consecFails++
	s.entry.HealthScore -= float64(penalty)
	if s.entry.HealthScore < 0 {
		s.entry.HealthScore = 0
	}

	if s.entry.ConsecutiveFails >= p.cfg.CircuitBreakerThreshold {
		s.entry.CircuitState = domain.ProxyCircuitOpen
		s.entry.OpenedAt = time.Now()
	}

	backoffSeconds := backoffBase.Seconds()
	for i := 1; i < s.consecFails; i++ {
		backoffSeconds *= 2
	}
	if backoffSeconds > backoffMax.Seconds() {
		backoffSeconds = backoffMax.Seconds()
	}
	s.backoffUntil = time.Now().Add(time.Duration(backoffSeconds * float64(time.Second)))
}

func (p *Pool) find(address string) *state {
	for _, s := range p.states {
		if s.entry.Address == address {
			return s
		}
	}
	return nil
}

// Op is one attempt of an operation executed against an acquired proxy.
type Op func(ctx context.Context, entry *domain.ProxyEntry) error

// ExecuteWithRetry acquires a proxy, invokes op, classifies any error via
// classify, records success/failure, and retries with exponential backoff
// (1s, 2s, 4s, ... capped 60s) up to maxRetries times. It fails with
// domain.ErrProxy after the retry budget is exhausted or no proxy is ever
// acquirable.
func (p *Pool) ExecuteWithRetry(ctx context.Context, maxRetries int, classify func(error) domain.ErrorKind, op Op) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = backoffMax
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	var lastErr error
	attempts := 0
	for {
		attempts++
		entry := p.Acquire()
		if entry == nil {
			lastErr = fmt.Errorf("op=proxypool.execute_with_retry: %w: no eligible proxy", domain.ErrProxy)
		} else {
			start := time.Now()
			err := op(ctx, entry)
			if err == nil {
				p.RecordSuccess(entry.Address, time.Since(start))
				p.Release(entry)
				return nil
			}
			kind := classify(err)
			p.RecordFailure(entry.Address, kind)
			p.Release(entry)
			lastErr = err
		}

		if attempts > maxRetries {
			return fmt.Errorf("op=proxypool.execute_with_retry: %w: %v", domain.ErrProxy, lastErr)
		}

		wait := bo.NextBackOff()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
