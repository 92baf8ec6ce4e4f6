package stream

import (
	"context"
	"iter"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/querypipe/internal/fault"
	"github.com/roach88/querypipe/internal/record"
	"github.com/roach88/querypipe/internal/store"
)

// Page is one page of results.
type Page struct {
	Number  int             `json:"number"` // zero-based
	Offset  int             `json:"offset"`
	Records []record.Record `json:"records"`
}

// PageQuery wraps q as a derived table limited to one page:
//
//	SELECT * FROM (<q>) AS page LIMIT <pageSize> OFFSET <offset>
//
// q's parameters are carried over unchanged.
func PageQuery(q record.Query, pageSize, offset int) (record.Query, error) {
	if pageSize < 1 {
		return record.Query{}, fault.Configurationf("page query", "page size must be >= 1, got %d", pageSize)
	}
	if offset < 0 {
		return record.Query{}, fault.Configurationf("page query", "offset must be >= 0, got %d", offset)
	}

	text, _, err := sq.Select("*").
		From("(" + q.Text + ") AS page").
		Limit(uint64(pageSize)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return record.Query{}, fault.Operation("page query", err)
	}
	return record.Query{Text: text, Params: q.Params}, nil
}

// Pages yields q one page at a time. Each page is fetched under its own
// handle, released before the page is yielded. The sequence ends at the
// first empty page, which is not yielded.
func Pages(ctx context.Context, s *store.Scope, q record.Query, pageSize int) iter.Seq2[Page, error] {
	var guard once
	return func(yield func(Page, error) bool) {
		if pageSize < 1 {
			yield(Page{}, fault.Configurationf("stream pages", "page size must be >= 1, got %d", pageSize))
			return
		}
		if err := guard.claim("stream pages"); err != nil {
			yield(Page{}, err)
			return
		}

		for number, offset := 0, 0; ; number, offset = number+1, offset+pageSize {
			pq, err := PageQuery(q, pageSize, offset)
			if err != nil {
				yield(Page{}, err)
				return
			}

			records, err := store.Query(ctx, s, pq)
			if err != nil {
				yield(Page{}, err)
				return
			}
			if len(records) == 0 {
				s.Logger().DebugContext(ctx, "pagination finished", "pages", number)
				return
			}

			s.Metrics().Page()
			s.Metrics().Record("pages", len(records))
			s.Logger().DebugContext(ctx, "page fetched", "page", number, "offset", offset, "records", len(records))

			if !yield(Page{Number: number, Offset: offset, Records: records}, nil) {
				return
			}
		}
	}
}
