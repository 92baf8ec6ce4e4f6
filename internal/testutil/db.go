// Package testutil provides database fixtures shared by package tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querypipe/internal/config"
	"github.com/roach88/querypipe/internal/logging"
	"github.com/roach88/querypipe/internal/metrics"
	"github.com/roach88/querypipe/internal/store"
	"github.com/roach88/querypipe/internal/users"
)

// User is a user_data row.
type User struct {
	ID    string
	Name  string
	Email string
	Age   int
}

// Users returns n deterministic users aged 20, 21, 22, ... with IDs that
// sort in creation order.
func Users(n int) []User {
	out := make([]User, n)
	for i := range out {
		out[i] = User{
			ID:    fmt.Sprintf("00000000-0000-4000-8000-%012d", i+1),
			Name:  fmt.Sprintf("user-%02d", i+1),
			Email: fmt.Sprintf("user%02d@example.com", i+1),
			Age:   20 + i,
		}
	}
	return out
}

// Config returns a valid sqlite3 config for a fresh database file under
// t.TempDir().
func Config(t testing.TB) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database = filepath.Join(t.TempDir(), "querypipe.db")
	cfg.Secret = "test-secret"
	cfg.Delay = 0
	return cfg
}

// SeedUsers creates user_data in cfg's database and inserts seed.
func SeedUsers(t testing.TB, cfg config.Config, seed []User) {
	t.Helper()
	db, err := sql.Open(config.DriverSQLite3, cfg.Database)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(users.Schema())
	require.NoError(t, err)
	for _, u := range seed {
		_, err := db.Exec(`INSERT INTO user_data (user_id, name, email, age) VALUES (?, ?, ?, ?)`,
			u.ID, u.Name, u.Email, u.Age)
		require.NoError(t, err)
	}
}

// CountRows returns the number of rows in table.
func CountRows(t testing.TB, cfg config.Config, table string) int {
	t.Helper()
	db, err := sql.Open(config.DriverSQLite3, cfg.Database)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

// NewScope builds a scope over cfg with a private metrics registry, a
// discarding logger and a ScopeCounter.
func NewScope(t testing.TB, cfg config.Config, opts ...store.ScopeOption) (*store.Scope, *ScopeCounter) {
	t.Helper()
	counter := NewScopeCounter()
	all := append([]store.ScopeOption{
		store.WithLogger(logging.New(io.Discard, logging.Options{})),
		store.WithMetrics(metrics.New()),
		store.WithObserver(counter),
	}, opts...)

	scope, err := store.NewScope(cfg, all...)
	require.NoError(t, err)
	return scope, counter
}

// ScopeCounter is a store.Observer that counts lifecycle events per handle.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ScopeCounter struct {
	mu       sync.Mutex
	opens    int
	closes   int
	failures int
	open     map[string]bool
	extra    int
}

// NewScopeCounter creates an empty counter.
func NewScopeCounter() *ScopeCounter {
	return &ScopeCounter{open: make(map[string]bool)}
}

// Observe implements store.Observer.
func (c *ScopeCounter) Observe(_ context.Context, ev store.Event, handleID string, _ error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev {
	case store.EventOpen:
		c.opens++
		c.open[handleID] = true
	case store.EventClose:
		c.closes++
		if !c.open[handleID] {
			c.extra++
		}
		delete(c.open, handleID)
	case store.EventOpenFailed:
		c.failures++
	}
}

// Opens returns the number of handles opened.
func (c *ScopeCounter) Opens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens
}

// Closes returns the number of handles closed.
func (c *ScopeCounter) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// Failures returns the number of failed acquisitions.
func (c *ScopeCounter) Failures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures
}

// Outstanding returns the number of handles opened but not yet closed.
func (c *ScopeCounter) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.open)
}

// RequireBalanced fails t unless every opened handle was closed exactly once.
func (c *ScopeCounter) RequireBalanced(t testing.TB) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.Empty(t, c.open, "handles still open")
	require.Zero(t, c.extra, "handles closed more than once")
	require.Equal(t, c.opens, c.closes)
}
