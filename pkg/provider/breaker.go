package provider

import (
	"sync"
	"time"
)

// State is the circuit breaker's three-state machine (spec §4.4), adapted
// from the retry/circuit wrapper used for outbound HTTP calls elsewhere in
// the platform, generalized here to per-provider instances held by a
// registry instead of one breaker per client.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

// BreakerConfig holds the thresholds from spec §4.4.
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	HalfOpenMaxCalls int
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		Timeout:          60 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// CircuitBreaker is a single provider's failure-tracking state machine.
type CircuitBreaker struct {
	mu              sync.Mutex
	cfg             BreakerConfig
	state           State
	failureCount    int
	successCount    int
	halfOpenInFlight int
	openedAt        time.Time
}

func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// State reports the breaker's current state, transitioning OPEN to
// HALF_OPEN if the timeout has elapsed (an observing read, not a call
// attempt).
func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpenLocked()
	return b.state
}

func (b *CircuitBreaker) maybeHalfOpenLocked() {
	if b.state == StateOpen && time.Since(b.openedAt) >= b.cfg.Timeout {
		b.state = StateHalfOpen
		b.successCount = 0
		b.halfOpenInFlight = 0
	}
}

// Allow reports whether a call may proceed, reserving a half-open trial
// slot if applicable. Call Success or Failure exactly once per Allow==true.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpenLocked()

	switch b.state {
	case StateOpen:
		return false
	case StateHalfOpen:
		if b.halfOpenInFlight >= b.cfg.HalfOpenMaxCalls {
			return false
		}
		b.halfOpenInFlight++
		return true
	default:
		return true
	}
}

func (b *CircuitBreaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.successCount++
		b.halfOpenInFlight--
		if b.successCount >= b.cfg.SuccessThreshold {
			b.state = StateClosed
			b.failureCount = 0
			b.successCount = 0
		}
	default:
		b.failureCount = 0
	}
}

func (b *CircuitBreaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.halfOpenInFlight--
		b.state = StateOpen
		b.openedAt = time.Now()
		b.failureCount = 0
		b.successCount = 0
	default:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.state = StateOpen
			b.openedAt = time.Now()
		}
	}
}

// Reliability is a coarse [0,1] signal for registry tiebreaking: 1.0 when
// closed, 0.5 while probing half-open, 0 when open.
func (b *CircuitBreaker) Reliability() float64 {
	switch b.State() {
	case StateOpen:
		return 0
	case StateHalfOpen:
		return 0.5
	default:
		return 1.0
	}
}

// BreakerRegistry holds one CircuitBreaker per provider, guarded by a
// per-key lock as prescribed in spec §5.
type BreakerRegistry struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	breakers map[string]*CircuitBreaker
}

func NewBreakerRegistry(cfg BreakerConfig) *BreakerRegistry {
	return &BreakerRegistry{cfg: cfg, breakers: make(map[string]*CircuitBreaker)}
}

func (r *BreakerRegistry) Get(providerID string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[providerID]
	if !ok {
		b = NewCircuitBreaker(r.cfg)
		r.breakers[providerID] = b
	}
	return b
}
