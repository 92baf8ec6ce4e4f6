// Package stream produces query results lazily as iter.Seq2 sequences.
//
// Every producer owns its connections: Rows and Batches hold one handle for
// the whole iteration, Pages acquires and releases a handle per page. The
// handle is released when the sequence is exhausted, when it yields an error
// and when the consumer stops early with break. Nothing is yielded after a
// release.
//
// A sequence is single-use. Ranging it a second time yields ErrConsumed;
// call the producer again to start over.
package stream

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"

	"github.com/roach88/querypipe/internal/fault"
	"github.com/roach88/querypipe/internal/record"
	"github.com/roach88/querypipe/internal/store"
)

// ErrConsumed is yielded when a sequence is ranged more than once.
var ErrConsumed = errors.New("sequence already consumed")

// once guards a sequence against a second iteration.
type once struct {
	used atomic.Bool
}

func (o *once) claim(op string) error {
	if o.used.Swap(true) {
		return fault.Operation(op, ErrConsumed)
	}
	return nil
}

// each runs q on h and calls fn for every row until fn returns false.
// It returns the first query or scan error.
func each(ctx context.Context, h *store.Handle, q record.Query, fn func(record.Record) bool) error {
	rows, err := h.Query(ctx, q)
	if err != nil {
		return err
	}
	defer rows.Close()

	sc, err := record.NewScanner(rows)
	if err != nil {
		return fault.Operation("columns", err)
	}
	for rows.Next() {
		rec, err := sc.Scan(rows)
		if err != nil {
			return fault.Operation("scan", err)
		}
		if !fn(rec) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fault.Operation("rows", err)
	}
	return nil
}

// Rows yields the rows of q one at a time over a single handle.
func Rows(ctx context.Context, s *store.Scope, q record.Query) iter.Seq2[record.Record, error] {
	var guard once
	return func(yield func(record.Record, error) bool) {
		if err := guard.claim("stream rows"); err != nil {
			yield(record.Record{}, err)
			return
		}

		h, err := s.Acquire(ctx)
		if err != nil {
			yield(record.Record{}, err)
			return
		}
		defer h.Release()

		n := 0
		stopped := false
		err = each(ctx, h, q, func(rec record.Record) bool {
			n++
			if !yield(rec, nil) {
				stopped = true
				return false
			}
			return true
		})
		s.Metrics().Record("rows", n)
		s.Logger().DebugContext(ctx, "row stream finished", "handle", h.ID(), "records", n, "stopped_early", stopped)

		if err != nil && !stopped {
			yield(record.Record{}, err)
		}
	}
}

// Batches yields the rows of q in slices of size records over a single
// handle. The last batch may be shorter; an empty batch is never yielded.
// A size below 1 yields a configuration fault as the only element.
func Batches(ctx context.Context, s *store.Scope, q record.Query, size int) iter.Seq2[[]record.Record, error] {
	var guard once
	return func(yield func([]record.Record, error) bool) {
		if size < 1 {
			yield(nil, fault.Configurationf("stream batches", "batch size must be >= 1, got %d", size))
			return
		}
		if err := guard.claim("stream batches"); err != nil {
			yield(nil, err)
			return
		}

		h, err := s.Acquire(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		defer h.Release()

		batch := make([]record.Record, 0, size)
		n := 0
		stopped := false
		err = each(ctx, h, q, func(rec record.Record) bool {
			batch = append(batch, rec)
			if len(batch) < size {
				return true
			}
			n += len(batch)
			if !yield(batch, nil) {
				stopped = true
				return false
			}
			batch = make([]record.Record, 0, size)
			return true
		})
		if stopped {
			s.Metrics().Record("batches", n)
			return
		}
		if err != nil {
			s.Metrics().Record("batches", n)
			yield(nil, err)
			return
		}
		if len(batch) > 0 {
			n += len(batch)
			yield(batch, nil)
		}
		s.Metrics().Record("batches", n)
	}
}

// Drain collects every element of seq, stopping at the first error.
func Drain[T any](seq iter.Seq2[T, error]) ([]T, error) {
	out := []T{}
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
