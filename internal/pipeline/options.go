package pipeline

import (
	"log/slog"

	"github.com/cenkalti/backoff/v4"

	"github.com/roach88/querypipe/internal/metrics"
	"github.com/roach88/querypipe/internal/record"
)

// Option configures a Retry or a Cache stage. Options that do not apply to
// the stage being built are ignored.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *metrics.Registry

	onRetry func(RetryState)
	retryIf func(error) bool
	timer   backoff.Timer

	keyFunc      record.KeyFunc
	singleflight bool
}

func buildOptions(opts []Option) options {
	o := options{
		logger:  slog.Default(),
		metrics: metrics.Default,
		keyFunc: record.QueryKey,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the stage's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics sets the registry the stage reports to.
func WithMetrics(m *metrics.Registry) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithOnRetry registers a hook called after each failed attempt that will be
// retried.
func WithOnRetry(fn func(RetryState)) Option {
	return func(o *options) {
		o.onRetry = fn
	}
}

// WithRetryIf restricts retries to errors for which fn returns true.
// Configuration faults are never retried regardless.
func WithRetryIf(fn func(error) bool) Option {
	return func(o *options) {
		o.retryIf = fn
	}
}

// WithTimer replaces the timer used to wait between attempts.
func WithTimer(t backoff.Timer) Option {
	return func(o *options) {
		o.timer = t
	}
}

// WithKeyFunc sets how cache keys are derived. The default is
// record.QueryKey.
func WithKeyFunc(fn record.KeyFunc) Option {
	return func(o *options) {
		o.keyFunc = fn
	}
}

// WithSingleflight collapses concurrent misses for the same key into one
// execution.
func WithSingleflight() Option {
	return func(o *options) {
		o.singleflight = true
	}
}
