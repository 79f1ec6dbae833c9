package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/research-assistant/monitor/internal/client"
	"github.com/research-assistant/monitor/internal/testserver"
)

// fakeSource fails until calls exceed failures.
type fakeSource struct {
	mu       sync.Mutex
	calls    int
	failures int
	result   *client.SessionResult
}

func (f *fakeSource) GetResult(_ context.Context, _ string) (*client.SessionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, &client.StatusError{Method: "GET", Path: "/api/research/s", Code: 404}
	}
	return f.result, nil
}

func recordWaits(f *Fetcher) *[]time.Duration {
	var waits []time.Duration
	f.wait = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return &waits
}

func TestFetchSucceedsAfterFailures(t *testing.T) {
	src := &fakeSource{failures: 2, result: &client.SessionResult{FinalReport: "R"}}
	f := NewFetcher(src, nil)
	waits := recordWaits(f)

	res, err := f.Fetch(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, "R", res.FinalReport)
	assert.Equal(t, 3, src.calls)
	assert.Equal(t, []time.Duration{DefaultRetryDelay, DefaultRetryDelay}, *waits)
}

func TestFetchExhaustsBudget(t *testing.T) {
	src := &fakeSource{failures: 100}
	f := NewFetcher(src, nil)
	waits := recordWaits(f)

	res, err := f.Fetch(context.Background(), "s")
	require.Error(t, err)
	assert.Nil(t, res)

	var ru *ResultUnavailableError
	require.True(t, errors.As(err, &ru))
	assert.Equal(t, "s", ru.SessionID)
	assert.Equal(t, 10, ru.Attempts)
	assert.Equal(t, 10, src.calls)
	assert.Len(t, *waits, 9, "no delay after the last attempt")

	var se *client.StatusError
	assert.True(t, errors.As(err, &se), "last failure is wrapped")
}

func TestFetchTreatsNilResultAsFailure(t *testing.T) {
	src := &fakeSource{}
	f := &Fetcher{Source: src, MaxAttempts: 2}
	recordWaits(f)

	_, err := f.Fetch(context.Background(), "s")
	var ru *ResultUnavailableError
	require.True(t, errors.As(err, &ru))
	assert.ErrorIs(t, err, errEmptyResult)
	assert.Equal(t, 2, src.calls)
}

func TestFetchWithoutSource(t *testing.T) {
	_, err := (&Fetcher{}).Fetch(context.Background(), "s")
	assert.ErrorIs(t, err, ErrNoResultSource)
}

func TestFetchStopsOnCancel(t *testing.T) {
	src := &fakeSource{failures: 100}
	f := &Fetcher{Source: src, MaxAttempts: 10, RetryDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := f.Fetch(ctx, "s")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, src.calls)
}

func TestFetchIsIdempotent(t *testing.T) {
	srv := testserver.New(t)
	score := client.NewScore(8)
	srv.AddSession("s1", testserver.Session{
		Result: &client.SessionResult{
			Topic:         "graph neural networks",
			Status:        "complete",
			FinalReport:   "# Report",
			CoverageScore: &score,
			Plan:          &client.Plan{MainTopic: "GNNs"},
		},
	})

	f := &Fetcher{Source: client.NewHTTPClient(srv.URL, "", 0), MaxAttempts: 3, RetryDelay: time.Millisecond}
	first, err := f.Fetch(context.Background(), "s1")
	require.NoError(t, err)
	second, err := f.Fetch(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, srv.ResultCalls("s1"))
}
