package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanhartley/genforge/internal/domain/fault"
)

func testExecutor(t *testing.T) (*Executor, *[]time.Duration) {
	t.Helper()

	breaker := NewCircuitBreaker(DefaultFailureThreshold, DefaultCooldown)
	exec := NewExecutor(ExecutorConfig{
		MaxAttempts: 3,
		BaseBackoff: 1 * time.Second,
		MaxBackoff:  30 * time.Second,
	}, breaker, nil)

	var sleeps []time.Duration
	exec.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return exec, &sleeps
}

func unavailable() *fault.Fault {
	f := fault.New(fault.KindUnavailable, "connection reset")
	f.Delivered = true
	return f
}

func TestExecute_SucceedsFirstTry(t *testing.T) {
	exec, sleeps := testExecutor(t)

	calls := 0
	err := exec.Execute(context.Background(), "op", true, func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *sleeps)
}

func TestExecute_ExhaustsAttemptsOnPersistentUnavailable(t *testing.T) {
	exec, sleeps := testExecutor(t)

	calls := 0
	err := exec.Execute(context.Background(), "op", true, func(context.Context) error {
		calls++
		return unavailable()
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, *sleeps, 2)
	assert.Equal(t, fault.KindRetriesExhausted, fault.KindOf(err))

	// The final attempt's fault stays reachable through wrapping.
	var f *fault.Fault
	require.True(t, errors.As(errors.Unwrap(err), &f))
	assert.Equal(t, fault.KindUnavailable, f.Kind)
}

func TestExecute_PermanentFaultNotRetried(t *testing.T) {
	exec, _ := testExecutor(t)

	calls := 0
	err := exec.Execute(context.Background(), "op", true, func(context.Context) error {
		calls++
		return fault.New(fault.KindAuthRejected, "bad token")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, fault.KindAuthRejected, fault.KindOf(err))
}

func TestExecute_MalformedNotRetried(t *testing.T) {
	exec, _ := testExecutor(t)

	calls := 0
	err := exec.Execute(context.Background(), "op", true, func(context.Context) error {
		calls++
		return fault.New(fault.KindMalformed, "missing id")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestExecute_NonIdempotentDeliveredNotRetried(t *testing.T) {
	exec, _ := testExecutor(t)

	calls := 0
	err := exec.Execute(context.Background(), "submit", false, func(context.Context) error {
		calls++
		return unavailable() // Delivered: the submission may have landed
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, fault.KindUnavailable, fault.KindOf(err))
}

func TestExecute_NonIdempotentUndeliveredIsRetried(t *testing.T) {
	exec, _ := testExecutor(t)

	calls := 0
	err := exec.Execute(context.Background(), "submit", false, func(context.Context) error {
		calls++
		if calls == 1 {
			f := fault.New(fault.KindUnavailable, "connection refused")
			f.Delivered = false
			return f
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestExecute_RetryAfterOverridesBackoff(t *testing.T) {
	exec, sleeps := testExecutor(t)

	calls := 0
	err := exec.Execute(context.Background(), "op", true, func(context.Context) error {
		calls++
		if calls == 1 {
			f := fault.New(fault.KindRateLimited, "slow down")
			f.RetryAfter = 7 * time.Second
			f.Delivered = true
			return f
		}
		return nil
	})

	require.NoError(t, err)
	require.Len(t, *sleeps, 1)
	assert.Equal(t, 7*time.Second, (*sleeps)[0])
}

func TestExecute_BackoffGrowsWithJitter(t *testing.T) {
	exec, sleeps := testExecutor(t)

	_ = exec.Execute(context.Background(), "op", true, func(context.Context) error {
		return unavailable()
	})

	require.Len(t, *sleeps, 2)
	// base 1s and 2s, each within ±25%.
	assert.InDelta(t, float64(1*time.Second), float64((*sleeps)[0]), float64(250*time.Millisecond))
	assert.InDelta(t, float64(2*time.Second), float64((*sleeps)[1]), float64(500*time.Millisecond))
}

func TestExecute_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	breaker := NewCircuitBreaker(5, 30*time.Second)
	exec := NewExecutor(ExecutorConfig{MaxAttempts: 1, BaseBackoff: time.Second, MaxBackoff: time.Second}, breaker, nil)

	calls := 0
	fn := func(context.Context) error {
		calls++
		return unavailable()
	}

	for i := 0; i < 5; i++ {
		err := exec.Execute(context.Background(), "op", true, fn)
		require.Error(t, err)
	}
	assert.Equal(t, 5, calls)
	assert.Equal(t, BreakerOpen, breaker.State())

	// While open the transport is never contacted.
	err := exec.Execute(context.Background(), "op", true, fn)
	require.Error(t, err)
	assert.Equal(t, fault.KindCircuitOpen, fault.KindOf(err))
	assert.Equal(t, 5, calls)
}

func TestExecute_ProbeAllowedAfterCooldown(t *testing.T) {
	clock := newFakeClock()
	breaker := NewCircuitBreaker(1, 30*time.Second)
	breaker.SetClock(clock.now)
	exec := NewExecutor(ExecutorConfig{MaxAttempts: 1, BaseBackoff: time.Second, MaxBackoff: time.Second}, breaker, nil)

	_ = exec.Execute(context.Background(), "op", true, func(context.Context) error {
		return unavailable()
	})
	require.Equal(t, BreakerOpen, breaker.State())

	clock.advance(31 * time.Second)

	calls := 0
	err := exec.Execute(context.Background(), "op", true, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, BreakerClosed, breaker.State())
}

func TestExecute_CancelledDoesNotCountAgainstBreaker(t *testing.T) {
	breaker := NewCircuitBreaker(1, 30*time.Second)
	exec := NewExecutor(ExecutorConfig{MaxAttempts: 3, BaseBackoff: time.Second, MaxBackoff: time.Second}, breaker, nil)

	err := exec.Execute(context.Background(), "op", true, func(context.Context) error {
		return fault.New(fault.KindCancelled, "caller gave up")
	})

	require.Error(t, err)
	assert.Equal(t, fault.KindCancelled, fault.KindOf(err))
	assert.Equal(t, BreakerClosed, breaker.State())
}

func TestExecute_CancelledProbeDoesNotStickHalfOpen(t *testing.T) {
	clock := newFakeClock()
	breaker := NewCircuitBreaker(1, 30*time.Second)
	breaker.SetClock(clock.now)
	exec := NewExecutor(ExecutorConfig{MaxAttempts: 1, BaseBackoff: time.Second, MaxBackoff: time.Second}, breaker, nil)

	_ = exec.Execute(context.Background(), "op", true, func(context.Context) error {
		return unavailable()
	})
	require.Equal(t, BreakerOpen, breaker.State())

	// The cool-down elapses and the next call becomes the probe, but its
	// caller walks away mid-flight.
	clock.advance(31 * time.Second)
	err := exec.Execute(context.Background(), "op", true, func(context.Context) error {
		return fault.Wrap(fault.KindCancelled, "op cancelled", context.Canceled)
	})
	require.Error(t, err)
	require.Equal(t, fault.KindCancelled, fault.KindOf(err))
	require.Equal(t, BreakerHalfOpen, breaker.State())

	// Much later a healthy call must get through: the abandoned probe may
	// not hold the slot forever.
	clock.advance(12 * time.Hour)
	calls := 0
	err = exec.Execute(context.Background(), "op", true, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, BreakerClosed, breaker.State())
}

func TestExecute_ContextCancelledBeforeCall(t *testing.T) {
	exec, _ := testExecutor(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := exec.Execute(ctx, "op", true, func(context.Context) error {
		calls++
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, 0, calls)
	assert.Equal(t, fault.KindCancelled, fault.KindOf(err))
}

func TestExecute_CancelledDuringBackoff(t *testing.T) {
	breaker := NewCircuitBreaker(DefaultFailureThreshold, DefaultCooldown)
	exec := NewExecutor(ExecutorConfig{MaxAttempts: 3, BaseBackoff: time.Second, MaxBackoff: time.Second}, breaker, nil)
	exec.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	calls := 0
	err := exec.Execute(context.Background(), "op", true, func(context.Context) error {
		calls++
		return unavailable()
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, fault.KindCancelled, fault.KindOf(err))
}
