package application

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/evanhartley/genforge/internal/domain/fault"
)

// Default retry tuning: exponential backoff from one second, doubling per
// attempt, capped at thirty seconds, with ±25% jitter.
const (
	DefaultMaxAttempts = 3
	DefaultBaseBackoff = 1 * time.Second
	DefaultMaxBackoff  = 30 * time.Second
	defaultJitterFrac  = 0.25
)

// ExecutorConfig tunes the retry executor.
type ExecutorConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultExecutorConfig returns the production tuning.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxAttempts: DefaultMaxAttempts,
		BaseBackoff: DefaultBaseBackoff,
		MaxBackoff:  DefaultMaxBackoff,
	}
}

// Executor wraps transport calls with fault classification, exponential
// backoff, and the shared circuit breaker. One Executor serves the whole
// process so the breaker sees every call.
type Executor struct {
	cfg     ExecutorConfig
	breaker *CircuitBreaker
	logger  *slog.Logger

	// sleep waits for d or until ctx is done. Swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewExecutor creates an Executor over the shared breaker.
func NewExecutor(cfg ExecutorConfig, breaker *CircuitBreaker, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		cfg:     cfg,
		breaker: breaker,
		logger:  logger,
		sleep:   sleepCtx,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Execute runs fn with up to cfg.MaxAttempts attempts. Only transient
// faults (unavailable, rate_limited) are retried, and a non-idempotent
// operation is retried only when the failed request provably never reached
// the service. Exhausting the budget wraps the final fault in
// retries_exhausted. Cancellation is honored before every attempt and
// during every backoff sleep.
func (e *Executor) Execute(ctx context.Context, op string, idempotent bool, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fault.Wrap(fault.KindCancelled, op+" cancelled", err)
		}
		if err := e.breaker.Allow(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			e.breaker.RecordSuccess()
			return nil
		}
		lastErr = err

		if fault.KindOf(err) == fault.KindCancelled {
			// Caller walked away; not a service failure. If this call held
			// the half-open probe slot, hand it back so the next caller can
			// probe instead of being refused forever.
			e.breaker.ProbeAborted()
			return err
		}
		e.breaker.RecordFailure()

		if !fault.Transient(err) {
			return err
		}
		if !idempotent && fault.DeliveredOf(err) {
			// The request may have landed; retrying could duplicate a
			// billable job. Surface instead.
			return err
		}
		if attempt == e.cfg.MaxAttempts-1 {
			break
		}

		delay := e.backoff(attempt)
		if ra := fault.RetryAfterOf(err); ra > 0 {
			delay = ra
		}
		e.logger.Warn("transient failure, retrying",
			"op", op,
			"attempt", attempt+1,
			"max_attempts", e.cfg.MaxAttempts,
			"delay", delay,
			"error", err,
		)
		if err := e.sleep(ctx, delay); err != nil {
			return fault.Wrap(fault.KindCancelled, op+" cancelled during backoff", err)
		}
	}

	f := fault.Wrap(fault.KindRetriesExhausted, op+" failed after all attempts", lastErr)
	f.Remediation = "the generation api kept failing; check its status page or try again later"
	return f
}

// backoff computes the delay before retrying attempt (0-based): base ×
// 2^attempt, capped, with ±25% jitter so a fleet of cold-started clients
// does not synchronize.
func (e *Executor) backoff(attempt int) time.Duration {
	d := e.cfg.BaseBackoff << attempt
	if d > e.cfg.MaxBackoff || d <= 0 {
		d = e.cfg.MaxBackoff
	}

	e.rngMu.Lock()
	jitter := 1 + defaultJitterFrac*(2*e.rng.Float64()-1)
	e.rngMu.Unlock()

	return time.Duration(float64(d) * jitter)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
