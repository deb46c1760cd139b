package queue

import (
	"sync"
	"time"

	"github.com/smallnest/memograph/memory"
)

// BreakerState represents the state of the circuit breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	default:
		return "half-open"
	}
}

// BreakerConfig configures the circuit breaker guarding background
// processing.
type BreakerConfig struct {
	// FailureThreshold is how many consecutive failures open the circuit.
	FailureThreshold int
	// CoolDown is how long the circuit stays open before a probe is allowed.
	CoolDown time.Duration
	// HalfOpenMaxCalls caps the probes allowed while half-open.
	HalfOpenMaxCalls int
}

// DefaultBreakerConfig returns the production breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		CoolDown:         30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// CircuitBreaker stops background processing after repeated failures and
// probes for recovery after a cool-down. Failures are counted consecutively,
// with any success resetting the count; there is no sliding time window. All
// methods are safe for concurrent use.
type CircuitBreaker struct {
	mu              sync.Mutex
	config          BreakerConfig
	state           BreakerState
	failures        int
	halfOpenCalls   int
	lastFailureTime time.Time
	now             func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(config BreakerConfig) *CircuitBreaker {
	def := DefaultBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.CoolDown <= 0 {
		config.CoolDown = def.CoolDown
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	return &CircuitBreaker{config: config, state: BreakerClosed, now: time.Now}
}

// Allow reports whether a call may proceed. It returns
// memory.ErrCircuitOpen while the circuit is open or the half-open probe
// budget is spent.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		return nil
	case BreakerOpen:
		if cb.now().Sub(cb.lastFailureTime) > cb.config.CoolDown {
			cb.state = BreakerHalfOpen
			cb.halfOpenCalls = 1
			return nil
		}
		return memory.ErrCircuitOpen
	default: // BreakerHalfOpen
		if cb.halfOpenCalls >= cb.config.HalfOpenMaxCalls {
			return memory.ErrCircuitOpen
		}
		cb.halfOpenCalls++
		return nil
	}
}

// RecordSuccess closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.state = BreakerClosed
}

// RecordFailure counts a failure, opening the circuit at the threshold. A
// failed half-open probe reopens immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.lastFailureTime = cb.now()
	if cb.state == BreakerHalfOpen || cb.failures >= cb.config.FailureThreshold {
		cb.state = BreakerOpen
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
