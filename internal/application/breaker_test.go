package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanhartley/genforge/internal/domain/fault"
)

// fakeClock is a controllable time source for breaker tests.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewCircuitBreaker(5, 30*time.Second)
	b.SetClock(newFakeClock().now)

	for i := 0; i < 4; i++ {
		require.NoError(t, b.Allow())
		b.RecordFailure()
	}
	assert.Equal(t, BreakerClosed, b.State())

	require.NoError(t, b.Allow())
	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())

	err := b.Allow()
	require.Error(t, err)
	assert.Equal(t, fault.KindCircuitOpen, fault.KindOf(err))
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewCircuitBreaker(3, 30*time.Second)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	clock := newFakeClock()
	b := NewCircuitBreaker(1, 30*time.Second)
	b.SetClock(clock.now)

	b.RecordFailure()
	require.Equal(t, BreakerOpen, b.State())

	clock.advance(29 * time.Second)
	require.Error(t, b.Allow())

	clock.advance(2 * time.Second)
	require.NoError(t, b.Allow())
	assert.Equal(t, BreakerHalfOpen, b.State())
}

func TestBreaker_HalfOpenProbeIsSingleFlight(t *testing.T) {
	clock := newFakeClock()
	b := NewCircuitBreaker(1, 30*time.Second)
	b.SetClock(clock.now)

	b.RecordFailure()
	clock.advance(31 * time.Second)

	require.NoError(t, b.Allow()) // the probe
	err := b.Allow()              // a second call while the probe is in flight
	require.Error(t, err)
	assert.Equal(t, fault.KindCircuitOpen, fault.KindOf(err))
}

func TestBreaker_AbortedProbeReleasesSlot(t *testing.T) {
	clock := newFakeClock()
	b := NewCircuitBreaker(1, 30*time.Second)
	b.SetClock(clock.now)

	b.RecordFailure()
	clock.advance(31 * time.Second)
	require.NoError(t, b.Allow()) // the probe

	// The probe is cancelled without ever resolving. The slot comes back
	// and the next caller probes instead of being refused.
	b.ProbeAborted()
	assert.Equal(t, BreakerHalfOpen, b.State())
	require.NoError(t, b.Allow())

	b.RecordSuccess()
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_ProbeAbortedIsNoOpWhenNotHalfOpen(t *testing.T) {
	b := NewCircuitBreaker(2, 30*time.Second)

	b.ProbeAborted()
	assert.Equal(t, BreakerClosed, b.State())

	b.RecordFailure()
	b.RecordFailure()
	require.Equal(t, BreakerOpen, b.State())
	b.ProbeAborted()
	assert.Equal(t, BreakerOpen, b.State())
}

func TestBreaker_ProbeSuccessCloses(t *testing.T) {
	clock := newFakeClock()
	b := NewCircuitBreaker(1, 30*time.Second)
	b.SetClock(clock.now)

	b.RecordFailure()
	clock.advance(31 * time.Second)
	require.NoError(t, b.Allow())
	b.RecordSuccess()

	assert.Equal(t, BreakerClosed, b.State())
	require.NoError(t, b.Allow())
}

func TestBreaker_ProbeFailureReopensAndRestartsCooldown(t *testing.T) {
	clock := newFakeClock()
	b := NewCircuitBreaker(1, 30*time.Second)
	b.SetClock(clock.now)

	b.RecordFailure()
	clock.advance(31 * time.Second)
	require.NoError(t, b.Allow())
	b.RecordFailure()

	assert.Equal(t, BreakerOpen, b.State())

	// Cool-down restarted at the probe failure, not the original open.
	clock.advance(29 * time.Second)
	require.Error(t, b.Allow())
	clock.advance(2 * time.Second)
	require.NoError(t, b.Allow())
}

func TestBreaker_StateChangeCallback(t *testing.T) {
	clock := newFakeClock()
	b := NewCircuitBreaker(1, 30*time.Second)
	b.SetClock(clock.now)

	var transitions []string
	b.OnStateChange(func(from, to BreakerState) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	b.RecordFailure()
	clock.advance(31 * time.Second)
	require.NoError(t, b.Allow())
	b.RecordSuccess()

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}
