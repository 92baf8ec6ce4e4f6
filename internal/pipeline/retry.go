package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/roach88/querypipe/internal/fault"
	"github.com/roach88/querypipe/internal/metrics"
)

// RetryState describes one Retry invocation so far.
type RetryState struct {
	Attempt int   // attempts made, starting at 1
	LastErr error // error of the most recent attempt
}

// Retry re-runs a failed operation up to a fixed number of attempts with a
// constant delay between them.
//
// Configuration faults and context errors are never retried. When attempts
// run out, or the context ends while waiting, the last attempt's error is
// returned unchanged.
type Retry[T any] struct {
	maxAttempts int
	delay       time.Duration

	logger  *slog.Logger
	metrics *metrics.Registry
	onRetry func(RetryState)
	retryIf func(error) bool
	timer   backoff.Timer
}

// NewRetry validates the policy and returns it.
func NewRetry[T any](maxAttempts int, delay time.Duration, opts ...Option) (*Retry[T], error) {
	if maxAttempts < 1 {
		return nil, fault.Configurationf("retry", "max attempts must be >= 1, got %d", maxAttempts)
	}
	if delay < 0 {
		return nil, fault.Configurationf("retry", "delay must be >= 0, got %s", delay)
	}

	o := buildOptions(opts)
	return &Retry[T]{
		maxAttempts: maxAttempts,
		delay:       delay,
		logger:      o.logger,
		metrics:     o.metrics,
		onRetry:     o.onRetry,
		retryIf:     o.retryIf,
		timer:       o.timer,
	}, nil
}

// MaxAttempts returns the attempt limit.
func (r *Retry[T]) MaxAttempts() int {
	return r.maxAttempts
}

// Delay returns the wait between attempts.
func (r *Retry[T]) Delay() time.Duration {
	return r.delay
}

// Wrap implements Stage. Every attempt receives the same Call.
func (r *Retry[T]) Wrap(next Operation[T]) Operation[T] {
	return func(ctx context.Context, call Call) (T, error) {
		return r.Do(ctx, func(ctx context.Context) (T, error) {
			return next(ctx, call)
		})
	}
}

// Do runs fn under the policy.
func (r *Retry[T]) Do(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var state RetryState

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.delay), uint64(r.maxAttempts-1)),
		ctx,
	)

	attempt := func() (T, error) {
		state.Attempt++
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		state.LastErr = err
		if !r.retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	notify := func(err error, wait time.Duration) {
		r.metrics.Retry()
		r.logger.WarnContext(ctx, "attempt failed, retrying",
			"attempt", state.Attempt,
			"max_attempts", r.maxAttempts,
			"delay", wait,
			"error", err,
		)
		if r.onRetry != nil {
			r.onRetry(state)
		}
	}

	v, err := backoff.RetryNotifyWithTimerAndData(attempt, policy, notify, r.timer)
	if err != nil {
		var zero T
		if state.LastErr != nil {
			return zero, state.LastErr
		}
		return zero, err
	}
	return v, nil
}

func (r *Retry[T]) retryable(err error) bool {
	if fault.IsConfiguration(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if r.retryIf != nil {
		return r.retryIf(err)
	}
	return true
}

// RetryTx runs every attempt of r as its own transaction on the call's
// handle: a failed attempt is rolled back before the next one begins.
func RetryTx[T any](r *Retry[T]) Stage[T] {
	return StageFunc[T](func(next Operation[T]) Operation[T] {
		return r.Wrap(Transaction[T]().Wrap(next))
	})
}
