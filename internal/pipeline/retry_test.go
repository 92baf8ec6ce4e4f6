package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querypipe/internal/fault"
	"github.com/roach88/querypipe/internal/metrics"
	"github.com/roach88/querypipe/internal/pipeline"
	"github.com/roach88/querypipe/internal/record"
	tu "github.com/roach88/querypipe/internal/testutil"
)

func newRetry(t *testing.T, attempts int, delay time.Duration, opts ...pipeline.Option) (*pipeline.Retry[string], *tu.InstantTimer) {
	t.Helper()
	timer := tu.NewInstantTimer()
	all := append([]pipeline.Option{pipeline.WithTimer(timer), pipeline.WithLogger(discardLogger())}, opts...)
	r, err := pipeline.NewRetry[string](attempts, delay, all...)
	require.NoError(t, err)
	return r, timer
}

func TestNewRetry_RejectsBadPolicy(t *testing.T) {
	_, err := pipeline.NewRetry[int](0, time.Second)
	assert.True(t, fault.IsConfiguration(err))

	_, err = pipeline.NewRetry[int](3, -time.Second)
	assert.True(t, fault.IsConfiguration(err))
}

func TestRetry_SucceedsOnThirdAttempt(t *testing.T) {
	var states []pipeline.RetryState
	reg := metrics.New()
	r, timer := newRetry(t, 3, time.Second,
		pipeline.WithMetrics(reg),
		pipeline.WithOnRetry(func(s pipeline.RetryState) { states = append(states, s) }))

	calls := 0
	got, err := r.Do(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", fault.Connection("acquire", fmt.Errorf("refused #%d", calls))
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, timer.Waits())
	require.Len(t, states, 2)
	assert.Equal(t, 1, states[0].Attempt)
	assert.Equal(t, 2, states[1].Attempt)
	assert.ErrorContains(t, states[1].LastErr, "refused #2")
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.RetryAttempts))
}

func TestRetry_ExhaustedReturnsLastError(t *testing.T) {
	r, timer := newRetry(t, 3, 10*time.Millisecond)

	var errs []error
	_, err := r.Do(context.Background(), func(context.Context) (string, error) {
		e := fmt.Errorf("failure %d", len(errs)+1)
		errs = append(errs, e)
		return "", e
	})

	require.Len(t, errs, 3)
	assert.Same(t, errs[2], err)
	assert.Len(t, timer.Waits(), 2)
}

func TestRetry_SingleAttempt(t *testing.T) {
	r, timer := newRetry(t, 1, time.Second)
	boom := errors.New("boom")

	calls := 0
	_, err := r.Do(context.Background(), func(context.Context) (string, error) {
		calls++
		return "", boom
	})

	assert.Same(t, boom, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, timer.Waits())
}

func TestRetry_ConfigurationIsPermanent(t *testing.T) {
	r, _ := newRetry(t, 5, 0)
	cfgErr := fault.Configurationf("secret", "MYSQL_PASSWORD is not set")

	calls := 0
	_, err := r.Do(context.Background(), func(context.Context) (string, error) {
		calls++
		return "", cfgErr
	})

	assert.Same(t, cfgErr, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_RetryIf(t *testing.T) {
	r, _ := newRetry(t, 5, 0, pipeline.WithRetryIf(fault.IsConnection))

	calls := 0
	_, err := r.Do(context.Background(), func(context.Context) (string, error) {
		calls++
		return "", fault.Operation("query", errors.New("syntax error"))
	})

	assert.True(t, fault.IsOperation(err))
	assert.Equal(t, 1, calls)
}

func TestRetry_CancelledContextReturnsLastFault(t *testing.T) {
	r, _ := newRetry(t, 5, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	last := errors.New("transient")

	calls := 0
	_, err := r.Do(ctx, func(context.Context) (string, error) {
		calls++
		cancel()
		return "", last
	})

	assert.Same(t, last, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_WrapReusesCall(t *testing.T) {
	r, _ := newRetry(t, 2, 0)
	q := record.Q("SELECT ?", record.Int(7))

	var seen []record.Query
	op := r.Wrap(func(ctx context.Context, call pipeline.Call) (string, error) {
		seen = append(seen, call.Query)
		if len(seen) == 1 {
			return "", errors.New("once")
		}
		return "done", nil
	})

	got, err := pipeline.Run(context.Background(), op, q)
	require.NoError(t, err)
	assert.Equal(t, "done", got)
	assert.Equal(t, []record.Query{q, q}, seen)
}
