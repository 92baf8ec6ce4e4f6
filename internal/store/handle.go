package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/roach88/querypipe/internal/fault"
	"github.com/roach88/querypipe/internal/record"
)

// ErrHandleReleased is returned by any use of a Handle after Release.
var ErrHandleReleased = errors.New("handle released")

// ErrTxActive is returned by Begin while another transaction is active.
var ErrTxActive = errors.New("transaction already active")

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Handle is an exclusively owned database connection.
//
// Thread-safety: a Handle must not be used from more than one goroutine at
// a time. Release alone may be called concurrently.
type Handle struct {
	id    string
	scope *Scope
	db    *sql.DB

	mu       sync.Mutex
	released bool
	tx       *Tx
}

// ExecResult summarizes a write.
type ExecResult struct {
	RowsAffected int64 `json:"rows_affected"`
	LastInsertID int64 `json:"last_insert_id,omitempty"`
}

// ID returns the handle's UUIDv7.
func (h *Handle) ID() string {
	return h.id
}

// Released reports whether Release has been called.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

func (h *Handle) target() (querier, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil, ErrHandleReleased
	}
	if h.tx != nil {
		return h.tx.tx, nil
	}
	return h.db, nil
}

// Query runs q and returns the open rows. The caller closes them.
func (h *Handle) Query(ctx context.Context, q record.Query) (*sql.Rows, error) {
	target, err := h.target()
	if err != nil {
		return nil, fault.Operation("query", err)
	}
	rows, err := target.QueryContext(ctx, q.Text, q.Args()...)
	if err != nil {
		return nil, fault.Operation("query", err)
	}
	return rows, nil
}

// QueryRecords runs q and scans every row.
func (h *Handle) QueryRecords(ctx context.Context, q record.Query) ([]record.Record, error) {
	rows, err := h.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	records, err := record.ScanAll(rows)
	if err != nil {
		return nil, fault.Operation("scan", err)
	}
	return records, nil
}

// Exec runs a statement that returns no rows.
func (h *Handle) Exec(ctx context.Context, q record.Query) (ExecResult, error) {
	target, err := h.target()
	if err != nil {
		return ExecResult{}, fault.Operation("exec", err)
	}
	res, err := target.ExecContext(ctx, q.Text, q.Args()...)
	if err != nil {
		return ExecResult{}, fault.Operation("exec", err)
	}

	var out ExecResult
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	// pgx does not report insert IDs.
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	return out, nil
}

// Release closes the connection. Only the first call closes; later calls
// return nil. An active transaction is rolled back first.
func (h *Handle) Release() error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return nil
	}
	h.released = true
	tx := h.tx
	h.mu.Unlock()

	if tx != nil {
		tx.abandon()
	}

	err := h.db.Close()
	h.scope.notify(context.Background(), EventClose, h.id, err)
	return err
}
