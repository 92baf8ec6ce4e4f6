// Package metrics holds the Prometheus collectors querypipe reports to.
//
// A Registry owns its own prometheus.Registry so tests and embedded uses do
// not collide with the global default registerer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "querypipe"

// Label values for the counters.
const (
	ScopeOpened     = "opened"
	ScopeReleased   = "released"
	ScopeOpenFailed = "open_failed"

	TxCommitted  = "committed"
	TxRolledBack = "rolled_back"

	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Registry groups the collectors.
type Registry struct {
	reg *prometheus.Registry

	Scopes        *prometheus.CounterVec
	Transactions  *prometheus.CounterVec
	RetryAttempts prometheus.Counter
	CacheLookups  *prometheus.CounterVec
	Pages         prometheus.Counter
	Records       *prometheus.CounterVec
}

// New builds a Registry with every collector registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Registry{
		reg: reg,
		Scopes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scope_events_total",
			Help:      "Connection scope lifecycle events by outcome.",
		}, []string{"event"}),
		Transactions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Transactions by terminal state.",
		}, []string{"state"}),
		RetryAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Failed attempts that were followed by a retry.",
		}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by outcome.",
		}, []string{"result"}),
		Pages: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Non-empty pages fetched by page producers.",
		}),
		Records: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_streamed_total",
			Help:      "Records yielded by producers.",
		}, []string{"producer"}),
	}
}

// Gatherer exposes the underlying registry for exposition.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Scope counts a scope lifecycle event. Safe on a nil Registry.
func (r *Registry) Scope(event string) {
	if r == nil {
		return
	}
	r.Scopes.WithLabelValues(event).Inc()
}

// Transaction counts a terminal transaction state.
func (r *Registry) Transaction(state string) {
	if r == nil {
		return
	}
	r.Transactions.WithLabelValues(state).Inc()
}

// Retry counts one retried attempt.
func (r *Registry) Retry() {
	if r == nil {
		return
	}
	r.RetryAttempts.Inc()
}

// Cache counts a cache lookup.
func (r *Registry) Cache(result string) {
	if r == nil {
		return
	}
	r.CacheLookups.WithLabelValues(result).Inc()
}

// Page counts a fetched page.
func (r *Registry) Page() {
	if r == nil {
		return
	}
	r.Pages.Inc()
}

// Record counts n records yielded by producer.
func (r *Registry) Record(producer string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.Records.WithLabelValues(producer).Add(float64(n))
}

// Default is the registry used when a component is not given one.
var Default = New()
