package store

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/querypipe/internal/config"
	"github.com/roach88/querypipe/internal/metrics"
	"github.com/roach88/querypipe/internal/record"
)

// Scope acquires Handles for one database configuration.
//
// Thread-safety: a Scope is immutable after NewScope and safe for concurrent
// use. The Handles it returns are not.
type Scope struct {
	cfg       config.Config
	connector Connector
	observers []Observer
	logger    *slog.Logger
	metrics   *metrics.Registry
}

// ScopeOption configures a Scope.
type ScopeOption func(*Scope)

// WithConnector replaces the default SQLConnector.
func WithConnector(c Connector) ScopeOption {
	return func(s *Scope) {
		s.connector = c
	}
}

// WithObserver adds an observer. The logging observer is always installed.
func WithObserver(o Observer) ScopeOption {
	return func(s *Scope) {
		s.observers = append(s.observers, o)
	}
}

// WithLogger sets the logger used for lifecycle and transaction events.
func WithLogger(l *slog.Logger) ScopeOption {
	return func(s *Scope) {
		s.logger = l
	}
}

// WithMetrics sets the registry events are counted in.
func WithMetrics(m *metrics.Registry) ScopeOption {
	return func(s *Scope) {
		s.metrics = m
	}
}

// NewScope validates cfg and returns a Scope. A missing secret is reported
// here, before any connection is attempted.
func NewScope(cfg config.Config, opts ...ScopeOption) (*Scope, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Scope{
		cfg:       cfg,
		connector: SQLConnector{},
		logger:    slog.Default(),
		metrics:   metrics.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.observers = append([]Observer{logObserver{logger: s.logger, metrics: s.metrics}}, s.observers...)
	return s, nil
}

// Config returns the configuration the scope was built from.
func (s *Scope) Config() config.Config {
	return s.cfg
}

// Logger returns the scope's logger.
func (s *Scope) Logger() *slog.Logger {
	return s.logger
}

// Metrics returns the scope's metrics registry.
func (s *Scope) Metrics() *metrics.Registry {
	return s.metrics
}

// Acquire opens a new Handle. The caller must Release it; prefer Within.
//
// The secret is checked again so that a zero-value Scope never connects.
// A connector failure is returned as a connection fault.
func (s *Scope) Acquire(ctx context.Context) (*Handle, error) {
	if err := s.cfg.ValidateSecret(); err != nil {
		return nil, err
	}

	db, err := s.connector.Connect(ctx, s.cfg)
	if err != nil {
		err = connectFault(err)
		s.notify(ctx, EventOpenFailed, "", err)
		return nil, err
	}

	h := &Handle{
		id:    uuid.Must(uuid.NewV7()).String(),
		scope: s,
		db:    db,
	}
	s.notify(ctx, EventOpen, h.id, nil)
	return h, nil
}

func (s *Scope) notify(ctx context.Context, ev Event, handleID string, err error) {
	for _, o := range s.observers {
		o.Observe(ctx, ev, handleID, err)
	}
}

// Within acquires a Handle, runs fn with it and releases it on every exit
// path. A panic in fn propagates after the release.
func Within[T any](ctx context.Context, s *Scope, fn func(context.Context, *Handle) (T, error)) (T, error) {
	h, err := s.Acquire(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	defer h.Release()

	return fn(ctx, h)
}

// Query runs q in a scope of its own and returns every row.
func Query(ctx context.Context, s *Scope, q record.Query) ([]record.Record, error) {
	return Within(ctx, s, func(ctx context.Context, h *Handle) ([]record.Record, error) {
		return h.QueryRecords(ctx, q)
	})
}
