// Package users is the demo workload: a user_data table read and written
// through every querypipe wrapper.
package users

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/querypipe/internal/cache"
	"github.com/roach88/querypipe/internal/config"
	"github.com/roach88/querypipe/internal/fault"
	"github.com/roach88/querypipe/internal/fetch"
	"github.com/roach88/querypipe/internal/pipeline"
	"github.com/roach88/querypipe/internal/record"
	"github.com/roach88/querypipe/internal/store"
	"github.com/roach88/querypipe/internal/stream"
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the user_data DDL.
func Schema() string {
	return schemaSQL
}

// Table is the demo table name.
const Table = "user_data"

// Columns lists the user_data columns in schema order.
var Columns = []string{"user_id", "name", "email", "age"}

// ErrUserNotFound is returned by UpdateEmail when no row matches.
var ErrUserNotFound = errors.New("user not found")

// Repository runs the demo operations against one scope.
//
// Thread-safety: a Repository is safe for concurrent use; its cache is
// shared by every caller.
type Repository struct {
	scope  *store.Scope
	sql    sq.StatementBuilderType
	cache  *pipeline.Cache[[]record.Record]
	retry  *pipeline.Retry[store.ExecResult]
	logger *slog.Logger
	logSQL bool
}

// Option configures a Repository.
type Option func(*Repository)

// WithCache replaces the repository's result cache.
func WithCache(c *pipeline.Cache[[]record.Record]) Option {
	return func(r *Repository) {
		r.cache = c
	}
}

// WithQueryLogging logs the text of every query the repository runs.
func WithQueryLogging() Option {
	return func(r *Repository) {
		r.logSQL = true
	}
}

// New builds a Repository. The retry policy is taken from the scope's
// configuration.
func New(scope *store.Scope, opts ...Option) (*Repository, error) {
	cfg := scope.Config()

	retry, err := pipeline.NewRetry[store.ExecResult](cfg.MaxAttempts, cfg.Delay,
		pipeline.WithLogger(scope.Logger()),
		pipeline.WithMetrics(scope.Metrics()),
		pipeline.WithRetryIf(func(err error) bool { return !errors.Is(err, ErrUserNotFound) }),
	)
	if err != nil {
		return nil, err
	}

	builder := sq.StatementBuilder
	if cfg.Driver == config.DriverPgx {
		builder = builder.PlaceholderFormat(sq.Dollar)
	}

	r := &Repository{
		scope:  scope,
		sql:    builder,
		retry:  retry,
		logger: scope.Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = pipeline.NewCache(cache.New[[]record.Record](),
			pipeline.WithLogger(scope.Logger()),
			pipeline.WithMetrics(scope.Metrics()),
		)
	}
	return r, nil
}

// Scope returns the repository's scope.
func (r *Repository) Scope() *store.Scope {
	return r.scope
}

// Cache returns the repository's result cache.
func (r *Repository) Cache() *pipeline.Cache[[]record.Record] {
	return r.cache
}

func toQuery(b interface {
	ToSql() (string, []any, error)
}) (record.Query, error) {
	text, args, err := b.ToSql()
	if err != nil {
		return record.Query{}, fault.Operation("build query", err)
	}
	q, err := record.NewQuery(text, args...)
	if err != nil {
		return record.Query{}, fault.Operation("build query", err)
	}
	return q, nil
}

func (r *Repository) logged(ctx context.Context, q record.Query) {
	if r.logSQL {
		pipeline.LogQuery(ctx, r.logger, q)
	}
}

// AllUsersQuery selects every user ordered by id.
func (r *Repository) AllUsersQuery() (record.Query, error) {
	return toQuery(r.sql.Select(Columns...).From(Table).OrderBy("user_id"))
}

// OlderThanQuery selects users strictly older than age.
func (r *Repository) OlderThanQuery(age int) (record.Query, error) {
	return toQuery(r.sql.Select(Columns...).From(Table).Where(sq.Gt{"age": age}).OrderBy("user_id"))
}

// CreateTable creates user_data if it does not exist.
func (r *Repository) CreateTable(ctx context.Context) error {
	_, err := store.Within(ctx, r.scope, func(ctx context.Context, h *store.Handle) (store.ExecResult, error) {
		return h.Exec(ctx, record.Q(schemaSQL))
	})
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// StreamUsers yields users one at a time.
func (r *Repository) StreamUsers(ctx context.Context) iter.Seq2[record.Record, error] {
	q, err := r.AllUsersQuery()
	if err != nil {
		return failed[record.Record](err)
	}
	r.logged(ctx, q)
	return stream.Rows(ctx, r.scope, q)
}

// BatchOver reads users in batches of size and yields those strictly older
// than minAge.
func (r *Repository) BatchOver(ctx context.Context, size, minAge int) iter.Seq2[record.Record, error] {
	q, err := r.AllUsersQuery()
	if err != nil {
		return failed[record.Record](err)
	}
	r.logged(ctx, q)
	batches := stream.Batches(ctx, r.scope, q, size)

	return func(yield func(record.Record, error) bool) {
		for batch, err := range batches {
			if err != nil {
				yield(record.Record{}, err)
				return
			}
			for _, user := range batch {
				v, _ := user.Get("age")
				age, ok := asFloat(v)
				if !ok || age <= float64(minAge) {
					continue
				}
				if !yield(user, nil) {
					return
				}
			}
		}
	}
}

// LazyPaginate yields pages of pageSize users.
func (r *Repository) LazyPaginate(ctx context.Context, pageSize int) iter.Seq2[stream.Page, error] {
	q, err := r.AllUsersQuery()
	if err != nil {
		return failed[stream.Page](err)
	}
	r.logged(ctx, q)
	return stream.Pages(ctx, r.scope, q, pageSize)
}

// AverageAge streams every age and returns their mean and count without
// holding the rows in memory. The mean of an empty table is 0.
func (r *Repository) AverageAge(ctx context.Context) (float64, int, error) {
	q, err := toQuery(r.sql.Select("age").From(Table))
	if err != nil {
		return 0, 0, err
	}
	r.logged(ctx, q)

	var (
		total float64
		count int
	)
	for row, err := range stream.Rows(ctx, r.scope, q) {
		if err != nil {
			return 0, 0, err
		}
		v, _ := row.Get("age")
		age, ok := asFloat(v)
		if !ok {
			return 0, 0, fault.Operation("average age", fmt.Errorf("non-numeric age %v", v))
		}
		total += age
		count++
	}
	if count == 0 {
		return 0, 0, nil
	}
	return total / float64(count), count, nil
}

// UpdateEmail changes one user's email. Each attempt runs in its own
// transaction, committed on success and rolled back before a retry.
func (r *Repository) UpdateEmail(ctx context.Context, userID, email string) (store.ExecResult, error) {
	q, err := toQuery(r.sql.Update(Table).Set("email", email).Where(sq.Eq{"user_id": userID}))
	if err != nil {
		return store.ExecResult{}, err
	}

	var update pipeline.Operation[store.ExecResult] = func(ctx context.Context, call pipeline.Call) (store.ExecResult, error) {
		res, err := pipeline.Exec(ctx, call)
		if err != nil {
			return res, err
		}
		if res.RowsAffected == 0 {
			return res, fault.Operation("update email", fmt.Errorf("%w: %s", ErrUserNotFound, userID))
		}
		return res, nil
	}
	op := pipeline.Chain(update,
		pipeline.Scope[store.ExecResult](r.scope),
		pipeline.RetryTx(r.retry),
	)
	if r.logSQL {
		op = pipeline.Logged(op, r.logger)
	}
	return pipeline.Run(ctx, op, q)
}

// FetchAllAndOlder fetches every user and the users older than age
// concurrently, each under its own scope.
func (r *Repository) FetchAllAndOlder(ctx context.Context, age int) ([]record.Record, []record.Record, error) {
	all, err := r.AllUsersQuery()
	if err != nil {
		return nil, nil, err
	}
	older, err := r.OlderThanQuery(age)
	if err != nil {
		return nil, nil, err
	}
	return fetch.Pair(ctx, fetch.Query(r.scope, all), fetch.Query(r.scope, older))
}

// CachedQuery runs q through the read path: scope, then cache.
func (r *Repository) CachedQuery(ctx context.Context, q record.Query) ([]record.Record, error) {
	op := pipeline.ReadPath(r.scope, r.cache, pipeline.Operation[[]record.Record](pipeline.Records))
	if r.logSQL {
		op = pipeline.Logged(op, r.logger)
	}
	return pipeline.Run(ctx, op, q)
}

func failed[T any](err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}

func asFloat(v record.Value) (float64, bool) {
	switch val := v.(type) {
	case record.Float:
		return float64(val), true
	case record.Int:
		return float64(val), true
	}
	if text, ok := record.AsString(v); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		return f, err == nil
	}
	return 0, false
}
