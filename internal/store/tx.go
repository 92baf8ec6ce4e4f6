package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/querypipe/internal/fault"
	"github.com/roach88/querypipe/internal/metrics"
)

// ErrTxDone is returned by Commit or Rollback on a finished transaction.
var ErrTxDone = errors.New("transaction already finished")

// TxState is the lifecycle state of a transaction. TxActive is the only
// non-terminal state.
type TxState int

const (
	TxActive TxState = iota
	TxCommitted
	TxRolledBack
)

func (s TxState) String() string {
	switch s {
	case TxActive:
		return "active"
	case TxCommitted:
		return "committed"
	case TxRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("TxState(%d)", int(s))
	}
}

// Tx is a transaction on a Handle. It reaches exactly one terminal state.
type Tx struct {
	h  *Handle
	tx *sql.Tx

	mu    sync.Mutex
	state TxState
}

// Begin starts a transaction. Until it finishes, Query and Exec on h run
// inside it.
func (h *Handle) Begin(ctx context.Context) (*Tx, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil, fault.Operation("begin", ErrHandleReleased)
	}
	if h.tx != nil {
		return nil, fault.Operation("begin", ErrTxActive)
	}

	sqlTx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fault.Operation("begin", err)
	}

	t := &Tx{h: h, tx: sqlTx, state: TxActive}
	h.tx = t
	return t, nil
}

// State returns the current state.
func (t *Tx) State() TxState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Commit commits the transaction. A failed commit leaves the transaction
// rolled back and is returned as an operation fault.
func (t *Tx) Commit() error {
	t.mu.Lock()
	if t.state != TxActive {
		t.mu.Unlock()
		return fault.Operation("commit", ErrTxDone)
	}

	err := t.tx.Commit()
	if err != nil {
		_ = t.tx.Rollback()
		t.finishLocked(TxRolledBack)
		t.mu.Unlock()
		t.h.scope.logger.Error("commit failed", "handle", t.h.id, "error", err)
		return fault.Operation("commit", err)
	}
	t.finishLocked(TxCommitted)
	t.mu.Unlock()

	t.h.scope.logger.Debug("transaction committed", "handle", t.h.id)
	return nil
}

// Rollback aborts the transaction. The state becomes TxRolledBack even if
// the driver reports an error.
func (t *Tx) Rollback() error {
	t.mu.Lock()
	if t.state != TxActive {
		t.mu.Unlock()
		return fault.Operation("rollback", ErrTxDone)
	}
	err := t.tx.Rollback()
	t.finishLocked(TxRolledBack)
	t.mu.Unlock()

	if err != nil {
		return fault.Operation("rollback", err)
	}
	t.h.scope.logger.Debug("transaction rolled back", "handle", t.h.id)
	return nil
}

// finishLocked records the terminal state and detaches t from its handle.
func (t *Tx) finishLocked(state TxState) {
	t.state = state
	if state == TxCommitted {
		t.h.scope.metrics.Transaction(metrics.TxCommitted)
	} else {
		t.h.scope.metrics.Transaction(metrics.TxRolledBack)
	}

	t.h.mu.Lock()
	if t.h.tx == t {
		t.h.tx = nil
	}
	t.h.mu.Unlock()
}

// abandon rolls back a transaction still active when its handle is released.
func (t *Tx) abandon() {
	if t.State() != TxActive {
		return
	}
	if err := t.Rollback(); err != nil {
		t.h.scope.logger.Warn("rollback on release failed", "handle", t.h.id, "error", err)
	}
}

// InTx runs fn inside a transaction on h. It commits when fn succeeds and
// returns fn's result. When fn fails, it rolls back and returns fn's error
// unchanged; a rollback failure is only logged. A panic in fn rolls back and
// propagates.
//
// If fn finishes the transaction itself, InTx leaves it as it is.
func InTx[T any](ctx context.Context, h *Handle, fn func(context.Context, *Handle) (T, error)) (result T, err error) {
	var zero T

	tx, err := h.Begin(ctx)
	if err != nil {
		return zero, err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.rollbackQuietly(ctx)
			panic(p)
		}
	}()

	result, err = fn(ctx, h)
	if err != nil {
		tx.rollbackQuietly(ctx)
		return zero, err
	}

	if tx.State() != TxActive {
		return result, nil
	}
	if err := tx.Commit(); err != nil {
		return zero, err
	}
	return result, nil
}

func (t *Tx) rollbackQuietly(ctx context.Context) {
	if t.State() != TxActive {
		return
	}
	if err := t.Rollback(); err != nil {
		t.h.scope.logger.WarnContext(ctx, "rollback failed", "handle", t.h.id, "error", err)
	}
}
