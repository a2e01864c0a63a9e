// Package application contains use-case orchestration: the retry executor,
// the shared circuit breaker, and the generation job state machine.
package application

import (
	"sync"
	"time"

	"github.com/evanhartley/genforge/internal/domain/fault"
)

// BreakerState is the circuit breaker's current mode.
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
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Default breaker tuning: five consecutive failures open the circuit for
// thirty seconds.
const (
	DefaultFailureThreshold = 5
	DefaultCooldown         = 30 * time.Second
)

// CircuitBreaker is a failure-tripped gate shared by every job in the
// process. Consecutive whole-call failures open it; while open, calls fail
// fast without touching the transport. After the cool-down one probe is let
// through: success closes the circuit, failure reopens it.
type CircuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	cooldown         time.Duration
	now              func() time.Time
	onStateChange    func(from, to BreakerState)

	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
}

// NewCircuitBreaker creates a closed breaker. threshold is the consecutive
// failure count that opens it; cooldown is how long it stays open before
// admitting a probe.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: threshold,
		cooldown:         cooldown,
		now:              time.Now,
		state:            BreakerClosed,
	}
}

// SetClock overrides the breaker's time source. Test hook.
func (b *CircuitBreaker) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// OnStateChange registers a callback invoked (synchronously, outside any
// hot path guarantees) whenever the breaker changes state.
func (b *CircuitBreaker) OnStateChange(fn func(from, to BreakerState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// Allow reports whether a call may proceed. While open it returns a
// circuit_open fault; when the cool-down has elapsed it admits exactly one
// probe and refuses the rest until that probe resolves.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return nil
	case BreakerOpen:
		if b.now().Sub(b.openedAt) >= b.cooldown {
			b.transitionTo(BreakerHalfOpen)
			b.probing = true
			return nil
		}
		return b.openFault()
	case BreakerHalfOpen:
		if b.probing {
			return b.openFault()
		}
		b.probing = true
		return nil
	}
	return nil
}

// RecordSuccess resets the breaker after a successful call.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.failures = 0
	case BreakerHalfOpen:
		b.probing = false
		b.transitionTo(BreakerClosed)
	}
}

// RecordFailure counts one whole-call failure. In half-open the probe has
// failed, so the circuit reopens and the cool-down restarts.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.transitionTo(BreakerOpen)
		}
	case BreakerHalfOpen:
		b.probing = false
		b.transitionTo(BreakerOpen)
	}
}

// ProbeAborted releases the half-open probe slot when the admitted probe
// was cancelled before the service answered. A cancelled probe says nothing
// about the service's health, so the breaker stays half-open and the next
// Allow admits a fresh probe. No-op in any other state.
func (b *CircuitBreaker) ProbeAborted() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.probing = false
	}
}

// State returns the current mode.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// transitionTo must be called with the mutex held.
func (b *CircuitBreaker) transitionTo(next BreakerState) {
	prev := b.state
	b.state = next

	switch next {
	case BreakerClosed:
		b.failures = 0
	case BreakerOpen:
		b.openedAt = b.now()
	}

	if b.onStateChange != nil && prev != next {
		b.onStateChange(prev, next)
	}
}

func (b *CircuitBreaker) openFault() error {
	f := fault.Newf(fault.KindCircuitOpen, "circuit open after %d consecutive failures", b.failures)
	f.Remediation = "the generation api is failing repeatedly; calls resume automatically after the cool-down"
	return f
}
