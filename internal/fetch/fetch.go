// Package fetch runs independent fetches concurrently and joins their
// results.
//
// Each fetch is expected to own its scope (see Query); fetches never share a
// handle. There is no cancellation between siblings and no timeout: a join
// waits for every fetch to finish.
package fetch

import (
	"context"

	"github.com/sourcegraph/conc/iter"
	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/querypipe/internal/fault"
	"github.com/roach88/querypipe/internal/record"
	"github.com/roach88/querypipe/internal/store"
	"github.com/roach88/querypipe/internal/stream"
)

// Func fetches one result.
type Func[T any] func(ctx context.Context) (T, error)

// Pair runs fa and fb in their own goroutines and waits for both. When either
// fails, the first error reported is returned once both have finished, along
// with whatever the other fetch produced.
func Pair[A, B any](ctx context.Context, fa Func[A], fb Func[B]) (A, B, error) {
	var (
		a A
		b B
		g errgroup.Group
	)

	g.Go(func() error {
		return guard(func() (err error) {
			a, err = fa(ctx)
			return err
		})
	})
	g.Go(func() error {
		return guard(func() (err error) {
			b, err = fb(ctx)
			return err
		})
	})

	err := g.Wait()
	return a, b, err
}

// All runs fetches with at most limit in flight (limit < 1 means one per
// fetch) and returns the results in input order. Every fetch runs to
// completion; the errors of all failed fetches are joined.
func All[T any](ctx context.Context, fetches []Func[T], limit int) ([]T, error) {
	if limit < 1 {
		limit = len(fetches)
	}
	mapper := iter.Mapper[Func[T], T]{MaxGoroutines: limit}
	return mapper.MapErr(fetches, func(f *Func[T]) (T, error) {
		var v T
		err := guard(func() (err error) {
			v, err = (*f)(ctx)
			return err
		})
		return v, err
	})
}

// guard converts a panic in fn into an operation fault.
func guard(fn func() error) error {
	var err error
	var pc panics.Catcher
	pc.Try(func() {
		err = fn()
	})
	if r := pc.Recovered(); r != nil {
		return fault.Operation("fetch", r.AsError())
	}
	return err
}

// Collect streams q under its own scope and returns every row.
func Collect(ctx context.Context, s *store.Scope, q record.Query) ([]record.Record, error) {
	return stream.Drain(stream.Rows(ctx, s, q))
}

// Query returns a Func that collects q under its own scope.
func Query(s *store.Scope, q record.Query) Func[[]record.Record] {
	return func(ctx context.Context) ([]record.Record, error) {
		return Collect(ctx, s, q)
	}
}
