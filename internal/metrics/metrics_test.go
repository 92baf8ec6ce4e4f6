package metrics

import (
	"bytes"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Counters(t *testing.T) {
	r := New()

	r.Scope(ScopeOpened)
	r.Scope(ScopeOpened)
	r.Scope(ScopeReleased)
	r.Transaction(TxRolledBack)
	r.Retry()
	r.Cache(CacheHit)
	r.Cache(CacheMiss)
	r.Cache(CacheMiss)
	r.Page()
	r.Record("rows", 3)
	r.Record("rows", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.Scopes.WithLabelValues(ScopeOpened)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Scopes.WithLabelValues(ScopeReleased)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Transactions.WithLabelValues(TxRolledBack)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RetryAttempts))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.CacheLookups.WithLabelValues(CacheHit)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.CacheLookups.WithLabelValues(CacheMiss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Pages))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.Records.WithLabelValues("rows")))
}

func TestRegistry_NilIsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.Scope(ScopeOpened)
		r.Transaction(TxCommitted)
		r.Retry()
		r.Cache(CacheHit)
		r.Page()
		r.Record("rows", 1)
	})
}

func TestRegistry_Isolated(t *testing.T) {
	a, b := New(), New()
	a.Retry()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RetryAttempts))
}

func TestWriteText(t *testing.T) {
	r := New()
	r.Cache(CacheHit)

	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf))
	assert.Contains(t, buf.String(), `querypipe_cache_lookups_total{result="hit"} 1`)
}
