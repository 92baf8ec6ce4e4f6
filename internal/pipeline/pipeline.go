package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/querypipe/internal/fault"
	"github.com/roach88/querypipe/internal/record"
	"github.com/roach88/querypipe/internal/store"
)

// ErrNoHandle is returned when an operation that needs a connection runs
// outside a Scope stage.
var ErrNoHandle = errors.New("no handle: operation must run inside a scope stage")

// Call carries the inputs of one operation invocation.
type Call struct {
	Query  record.Query
	Handle *store.Handle
}

// Operation is a unit of work over a query.
type Operation[T any] func(ctx context.Context, call Call) (T, error)

// Stage wraps an Operation with additional behavior.
type Stage[T any] interface {
	Wrap(next Operation[T]) Operation[T]
}

// StageFunc adapts a function to Stage.
type StageFunc[T any] func(next Operation[T]) Operation[T]

// Wrap calls f.
func (f StageFunc[T]) Wrap(next Operation[T]) Operation[T] {
	return f(next)
}

// Chain wraps op in stages. stages[0] is the outermost.
func Chain[T any](op Operation[T], stages ...Stage[T]) Operation[T] {
	for i := len(stages) - 1; i >= 0; i-- {
		op = stages[i].Wrap(op)
	}
	return op
}

// Run invokes op for q.
func Run[T any](ctx context.Context, op Operation[T], q record.Query) (T, error) {
	return op(ctx, Call{Query: q})
}

// Scope acquires a Handle for each invocation and releases it on every exit
// path.
func Scope[T any](s *store.Scope) Stage[T] {
	return StageFunc[T](func(next Operation[T]) Operation[T] {
		return func(ctx context.Context, call Call) (T, error) {
			return store.Within(ctx, s, func(ctx context.Context, h *store.Handle) (T, error) {
				call.Handle = h
				return next(ctx, call)
			})
		}
	})
}

// Transaction runs the rest of the chain inside a transaction on the
// call's handle. See store.InTx for commit and rollback semantics.
func Transaction[T any]() Stage[T] {
	return StageFunc[T](func(next Operation[T]) Operation[T] {
		return func(ctx context.Context, call Call) (T, error) {
			if call.Handle == nil {
				var zero T
				return zero, fault.Operation("transaction", ErrNoHandle)
			}
			return store.InTx(ctx, call.Handle, func(ctx context.Context, h *store.Handle) (T, error) {
				return next(ctx, call)
			})
		}
	})
}

// LogQueries logs the query text of every invocation at info level before
// running it.
func LogQueries[T any](logger *slog.Logger) Stage[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return StageFunc[T](func(next Operation[T]) Operation[T] {
		return func(ctx context.Context, call Call) (T, error) {
			LogQuery(ctx, logger, call.Query)
			return next(ctx, call)
		}
	})
}

// LogQuery writes the line LogQueries emits. Producers that run outside a
// pipeline use it directly.
func LogQuery(ctx context.Context, logger *slog.Logger, q record.Query) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "executing query", "query", q.Text, "params", len(q.Params))
}

// Logged is op wrapped in LogQueries.
func Logged[T any](op Operation[T], logger *slog.Logger) Operation[T] {
	return LogQueries[T](logger).Wrap(op)
}

// Records runs the call's query and returns every row.
func Records(ctx context.Context, call Call) ([]record.Record, error) {
	if call.Handle == nil {
		return nil, fault.Operation("query", ErrNoHandle)
	}
	return call.Handle.QueryRecords(ctx, call.Query)
}

// Exec runs the call's query as a statement.
func Exec(ctx context.Context, call Call) (store.ExecResult, error) {
	if call.Handle == nil {
		return store.ExecResult{}, fault.Operation("exec", ErrNoHandle)
	}
	return call.Handle.Exec(ctx, call.Query)
}

// ReadPath composes scope, then cache, then op. A cache hit still holds a
// handle for the duration of the call.
func ReadPath[T any](s *store.Scope, c *Cache[T], op Operation[T], extra ...Stage[T]) Operation[T] {
	stages := append([]Stage[T]{Scope[T](s), c}, extra...)
	return Chain(op, stages...)
}

// WritePath composes scope, then transaction, then retry, then op. Every
// attempt runs inside the same transaction, so it suits faults that leave
// the transaction usable. A fault the server answers by aborting the
// transaction (a MySQL deadlock, for one) needs RetryTx, which begins a
// fresh transaction per attempt.
func WritePath[T any](s *store.Scope, r *Retry[T], op Operation[T], extra ...Stage[T]) Operation[T] {
	stages := append([]Stage[T]{Scope[T](s), Transaction[T](), r}, extra...)
	return Chain(op, stages...)
}
