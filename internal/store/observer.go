package store

import (
	"context"
	"log/slog"

	"github.com/roach88/querypipe/internal/metrics"
)

// Event is a handle lifecycle event.
type Event string

const (
	EventOpen       Event = "open"
	EventClose      Event = "close"
	EventOpenFailed Event = "open_failed"
)

// Observer is notified of handle lifecycle events. handleID is empty for
// EventOpenFailed; err is set only for EventOpenFailed and for an
// EventClose whose underlying close failed.
type Observer interface {
	Observe(ctx context.Context, ev Event, handleID string, err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event, handleID string, err error)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, ev Event, handleID string, err error) {
	f(ctx, ev, handleID, err)
}

// logObserver logs every event and counts it.
type logObserver struct {
	logger  *slog.Logger
	metrics *metrics.Registry
}

func (o logObserver) Observe(ctx context.Context, ev Event, handleID string, err error) {
	switch ev {
	case EventOpen:
		o.metrics.Scope(metrics.ScopeOpened)
		o.logger.DebugContext(ctx, "connection opened", "handle", handleID)
	case EventClose:
		o.metrics.Scope(metrics.ScopeReleased)
		if err != nil {
			o.logger.WarnContext(ctx, "connection close failed", "handle", handleID, "error", err)
			return
		}
		o.logger.DebugContext(ctx, "connection closed", "handle", handleID)
	case EventOpenFailed:
		o.metrics.Scope(metrics.ScopeOpenFailed)
		o.logger.ErrorContext(ctx, "connection failed", "error", err)
	}
}
