package pipeline_test

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querypipe/internal/config"
	"github.com/roach88/querypipe/internal/fault"
	"github.com/roach88/querypipe/internal/logging"
	"github.com/roach88/querypipe/internal/metrics"
	"github.com/roach88/querypipe/internal/pipeline"
	"github.com/roach88/querypipe/internal/record"
	"github.com/roach88/querypipe/internal/store"
	tu "github.com/roach88/querypipe/internal/testutil"
)

const insertUserSQL = "INSERT INTO user_data (user_id, name, email, age) VALUES (?, ?, ?, ?)"

func insertUser(id, name string) record.Query {
	return record.Q(insertUserSQL, record.String(id), record.String(name), record.String(name+"@example.com"), record.Int(30))
}

func seeded(t *testing.T, n int, opts ...store.ScopeOption) (config.Config, *store.Scope, *tu.ScopeCounter) {
	t.Helper()
	cfg := tu.Config(t)
	tu.SeedUsers(t, cfg, tu.Users(n))
	scope, counter := tu.NewScope(t, cfg, opts...)
	return cfg, scope, counter
}

type stageFunc = pipeline.StageFunc[int]

func TestChain_FirstStageIsOutermost(t *testing.T) {
	var order []string
	mark := func(name string) pipeline.Stage[int] {
		return stageFunc(func(next pipeline.Operation[int]) pipeline.Operation[int] {
			return func(ctx context.Context, call pipeline.Call) (int, error) {
				order = append(order, name+">")
				v, err := next(ctx, call)
				order = append(order, "<"+name)
				return v, err
			}
		})
	}

	op := pipeline.Chain(func(ctx context.Context, call pipeline.Call) (int, error) {
		order = append(order, "op")
		return 1, nil
	}, mark("a"), mark("b"))

	_, err := pipeline.Run(context.Background(), op, record.Q("SELECT 1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a>", "b>", "op", "<b", "<a"}, order)
}

func TestOperations_RequireHandle(t *testing.T) {
	_, err := pipeline.Records(context.Background(), pipeline.Call{Query: record.Q("SELECT 1")})
	assert.ErrorIs(t, err, pipeline.ErrNoHandle)

	_, err = pipeline.Exec(context.Background(), pipeline.Call{Query: record.Q("SELECT 1")})
	assert.ErrorIs(t, err, pipeline.ErrNoHandle)

	op := pipeline.Transaction[int]().Wrap(func(context.Context, pipeline.Call) (int, error) { return 1, nil })
	_, err = pipeline.Run(context.Background(), op, record.Q("SELECT 1"))
	assert.ErrorIs(t, err, pipeline.ErrNoHandle)
	assert.True(t, fault.IsOperation(err))
}

func TestScopeStage_ReleasesPerInvocation(t *testing.T) {
	_, scope, counter := seeded(t, 3)
	op := pipeline.Chain(pipeline.Operation[[]record.Record](pipeline.Records), pipeline.Scope[[]record.Record](scope))

	for i := 0; i < 3; i++ {
		records, err := pipeline.Run(context.Background(), op, record.Q("SELECT * FROM user_data"))
		require.NoError(t, err)
		assert.Len(t, records, 3)
	}

	assert.Equal(t, 3, counter.Opens())
	counter.RequireBalanced(t)
}

func TestReadPath_CacheHitStillScoped(t *testing.T) {
	_, scope, counter := seeded(t, 4)
	c := pipeline.NewCache[[]record.Record](nil, pipeline.WithMetrics(metrics.New()), pipeline.WithLogger(discardLogger()))

	calls := 0
	op := pipeline.ReadPath(scope, c, func(ctx context.Context, call pipeline.Call) ([]record.Record, error) {
		calls++
		return pipeline.Records(ctx, call)
	})

	q := record.Q("SELECT * FROM user_data")
	first, err := pipeline.Run(context.Background(), op, q)
	require.NoError(t, err)
	second, err := pipeline.Run(context.Background(), op, q)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.Len(t, second, 4)
	assert.Equal(t, 2, counter.Opens())
	counter.RequireBalanced(t)
}

func TestWritePath_CommitsOnSuccess(t *testing.T) {
	cfg, scope, counter := seeded(t, 2)
	r, err := pipeline.NewRetry[store.ExecResult](3, 0, pipeline.WithLogger(discardLogger()), pipeline.WithMetrics(metrics.New()))
	require.NoError(t, err)

	op := pipeline.WritePath(scope, r, pipeline.Operation[store.ExecResult](pipeline.Exec))
	res, err := pipeline.Run(context.Background(), op, insertUser("new-1", "Dana"))

	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)
	assert.Equal(t, 3, tu.CountRows(t, cfg, "user_data"))
	counter.RequireBalanced(t)
}

func TestWritePath_RollbackPreservesError(t *testing.T) {
	cfg, scope, counter := seeded(t, 2)
	r, err := pipeline.NewRetry[store.ExecResult](1, 0, pipeline.WithLogger(discardLogger()), pipeline.WithMetrics(metrics.New()))
	require.NoError(t, err)
	boom := errors.New("validation failed after insert")

	op := pipeline.WritePath(scope, r, func(ctx context.Context, call pipeline.Call) (store.ExecResult, error) {
		if _, err := pipeline.Exec(ctx, call); err != nil {
			return store.ExecResult{}, err
		}
		return store.ExecResult{}, boom
	})
	_, err = pipeline.Run(context.Background(), op, insertUser("new-1", "Dana"))

	assert.Same(t, boom, err)
	assert.Equal(t, 2, tu.CountRows(t, cfg, "user_data"), "rolled back insert must not persist")
	counter.RequireBalanced(t)
}

func TestRetryTx_EachAttemptIsItsOwnTransaction(t *testing.T) {
	cfg, scope, counter := seeded(t, 1)
	r, err := pipeline.NewRetry[store.ExecResult](3, 0, pipeline.WithLogger(discardLogger()), pipeline.WithMetrics(metrics.New()))
	require.NoError(t, err)

	attempts := 0
	op := pipeline.Chain(func(ctx context.Context, call pipeline.Call) (store.ExecResult, error) {
		attempts++
		if _, err := call.Handle.Exec(ctx, insertUser("attempt-"+string(rune('0'+attempts)), "Try")); err != nil {
			return store.ExecResult{}, err
		}
		if attempts < 3 {
			return store.ExecResult{}, errors.New("flaky")
		}
		return store.ExecResult{RowsAffected: 1}, nil
	}, pipeline.Scope[store.ExecResult](scope), pipeline.RetryTx(r))

	_, err = pipeline.Run(context.Background(), op, record.Q("unused"))
	require.NoError(t, err)

	assert.Equal(t, 3, attempts)
	assert.Equal(t, 2, tu.CountRows(t, cfg, "user_data"), "only the successful attempt persists")
	assert.Equal(t, 1, counter.Opens())
	counter.RequireBalanced(t)
}

func TestRetryOutsideScope_RetriesAcquisition(t *testing.T) {
	failures := 0
	connector := store.ConnectorFunc(func(ctx context.Context, cfg config.Config) (*sql.DB, error) {
		if failures < 2 {
			failures++
			return nil, errors.New("server has gone away")
		}
		return store.SQLConnector{}.Connect(ctx, cfg)
	})
	_, scope, counter := seeded(t, 2, store.WithConnector(connector))

	r, err := pipeline.NewRetry[[]record.Record](3, 0,
		pipeline.WithRetryIf(fault.IsConnection), pipeline.WithLogger(discardLogger()), pipeline.WithMetrics(metrics.New()))
	require.NoError(t, err)

	op := pipeline.Chain(pipeline.Operation[[]record.Record](pipeline.Records), r, pipeline.Scope[[]record.Record](scope))
	records, err := pipeline.Run(context.Background(), op, record.Q("SELECT * FROM user_data"))

	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 2, counter.Failures())
	assert.Equal(t, 1, counter.Opens())
	counter.RequireBalanced(t)
}

func TestLogged_LogsQueryText(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, logging.Options{})

	op := pipeline.Logged(func(context.Context, pipeline.Call) (int, error) { return 7, nil }, logger)
	got, err := pipeline.Run(context.Background(), op, record.Q("SELECT * FROM user_data WHERE age > ?", record.Int(25)))

	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Contains(t, buf.String(), "executing query")
	assert.Contains(t, buf.String(), "SELECT * FROM user_data WHERE age > ?")
	assert.Contains(t, buf.String(), "params=1")
}
