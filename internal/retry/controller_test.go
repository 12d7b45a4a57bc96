package retry

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trends-proxy/internal/common/errors"
	"trends-proxy/internal/trends"
)

// scriptedFetcher returns its scripted outcomes in order.
type scriptedFetcher struct {
	outcomes []fetchOutcome
	calls    int
}

type fetchOutcome struct {
	series trends.Series
	err    error
}

func (f *scriptedFetcher) Fetch(ctx context.Context, req trends.Request) (trends.Series, error) {
	out := f.outcomes[f.calls]
	f.calls++
	return out.series, out.err
}

func newTestController(f Fetcher) (*Controller, *[]time.Duration) {
	c := NewController(f, DefaultConfig(), nil)
	var slept []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return c, &slept
}

func TestFetchWithRetry_SucceedsFirstAttempt(t *testing.T) {
	f := &scriptedFetcher{outcomes: []fetchOutcome{
		{series: trends.Series{10, 20, 30}},
	}}
	c, slept := newTestController(f)

	series, err := c.FetchWithRetry(context.Background(), trends.Request{Keyword: "dog bed"})

	require.NoError(t, err)
	assert.Equal(t, trends.Series{10, 20, 30}, series)
	assert.Equal(t, 1, f.calls)
	assert.Empty(t, *slept)
}

func TestFetchWithRetry_ThrottledTwiceThenSucceeds(t *testing.T) {
	f := &scriptedFetcher{outcomes: []fetchOutcome{
		{err: errors.UpstreamThrottledError("HTTP 429", nil)},
		{err: errors.UpstreamThrottledError("HTTP 429", nil)},
		{series: trends.Series{42}},
	}}
	c, slept := newTestController(f)

	series, err := c.FetchWithRetry(context.Background(), trends.Request{Keyword: "dog bed"})

	require.NoError(t, err)
	assert.Equal(t, trends.Series{42}, series)
	assert.Equal(t, 3, f.calls)
	assert.Equal(t, []time.Duration{30 * time.Second, 30 * time.Second}, *slept)
}

func TestFetchWithRetry_ThrottleExhaustion(t *testing.T) {
	throttled := errors.UpstreamThrottledError("HTTP 429", nil)
	f := &scriptedFetcher{outcomes: []fetchOutcome{
		{err: throttled}, {err: throttled}, {err: throttled},
	}}
	c, slept := newTestController(f)

	_, err := c.FetchWithRetry(context.Background(), trends.Request{Keyword: "dog bed"})

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeUpstreamRateLimit))
	assert.Equal(t, 30*time.Second, errors.RetryAfterOf(err))
	assert.Equal(t, 3, f.calls)
	// No cooldown after the final attempt
	assert.Len(t, *slept, 2)
}

func TestFetchWithRetry_TransientExhaustionPreservesLastError(t *testing.T) {
	last := errors.ConnectionError("dial tcp: connection refused", stderrors.New("refused"))
	f := &scriptedFetcher{outcomes: []fetchOutcome{
		{err: errors.TimeoutError("upstream fetch")},
		{err: errors.ConnectionError("reset by peer", nil)},
		{err: last},
	}}
	c, slept := newTestController(f)

	_, err := c.FetchWithRetry(context.Background(), trends.Request{Keyword: "dog bed"})

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeUpstreamUnavailable))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, *slept)
}

func TestFetchWithRetry_EmptySeriesIsNotAFailure(t *testing.T) {
	f := &scriptedFetcher{outcomes: []fetchOutcome{
		{series: trends.Series{}},
	}}
	c, _ := newTestController(f)

	series, err := c.FetchWithRetry(context.Background(), trends.Request{Keyword: "obscure keyword"})

	require.NoError(t, err)
	assert.NotNil(t, series)
	assert.Empty(t, series)
	assert.Equal(t, 1, f.calls)
}

func TestFetchWithRetry_NonTransientAbortsImmediately(t *testing.T) {
	f := &scriptedFetcher{outcomes: []fetchOutcome{
		{err: errors.ValidationError("HTTP 400: bad timeframe")},
	}}
	c, slept := newTestController(f)

	_, err := c.FetchWithRetry(context.Background(), trends.Request{Keyword: "dog bed"})

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	assert.Equal(t, 1, f.calls)
	assert.Empty(t, *slept)
}

func TestFetchWithRetry_CancelledDuringCooldown(t *testing.T) {
	f := &scriptedFetcher{outcomes: []fetchOutcome{
		{err: errors.UpstreamThrottledError("HTTP 429", nil)},
		{series: trends.Series{1}},
	}}
	c := NewController(f, DefaultConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchWithRetry(ctx, trends.Request{Keyword: "dog bed"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.Equal(t, 1, f.calls)
}
