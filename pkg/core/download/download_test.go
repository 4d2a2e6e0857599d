package download

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobAndArgs(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	job := NewJob("AAPL", now, 3)
	require.NoError(t, job.Validate())

	assert.Equal(t, []string{
		"--tickers", "AAPL",
		"--filing-types", "10-K,4",
		"--date-from", "2022-06-15",
		"--date-to", "2025-06-15",
	}, Args(job))
}

func TestJobValidate(t *testing.T) {
	now := time.Now()
	assert.Error(t, Job{FilingTypes: []string{"4"}}.Validate())
	assert.Error(t, Job{Tickers: []string{"AAPL"}}.Validate())
	assert.Error(t, Job{Tickers: []string{"AAPL"}, FilingTypes: []string{"4"}, DateFrom: now, DateTo: now.Add(-time.Hour)}.Validate())
}

func TestNoop(t *testing.T) {
	_, err := Noop{}.Submit(context.Background(), NewJob("AAPL", time.Now(), 1))
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestScriptRunnerDedupesInFlight(t *testing.T) {
	release := make(chan struct{})
	var runs int32
	r := NewScriptRunner(RunnerConfig{Script: "fetch.sh", Concurrency: 1, Timeout: time.Minute}, zerolog.Nop()).
		WithRunFunc(func(ctx context.Context, script string, args []string) ([]byte, error) {
			atomic.AddInt32(&runs, 1)
			<-release
			return nil, nil
		})

	job := NewJob("AMZN", time.Now(), 3)
	first, err := r.Submit(context.Background(), job)
	require.NoError(t, err)
	assert.False(t, first.Deduplicated)
	assert.NotEmpty(t, first.ID)

	same := job
	same.FilingTypes = []string{"4", "10-K"}
	second, err := r.Submit(context.Background(), same)
	require.NoError(t, err)
	assert.True(t, second.Deduplicated)
	assert.Equal(t, first.ID, second.ID)

	close(release)
	r.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
	assert.Equal(t, 0, r.InFlight())

	third, err := r.Submit(context.Background(), job)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
	r.Wait()
}

func TestScriptRunnerBoundsConcurrency(t *testing.T) {
	var mu sync.Mutex
	running, peak := 0, 0
	r := NewScriptRunner(RunnerConfig{Script: "fetch.sh", Concurrency: 2, Timeout: time.Minute}, zerolog.Nop()).
		WithRunFunc(func(ctx context.Context, script string, args []string) ([]byte, error) {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			mu.Lock()
			running--
			mu.Unlock()
			return nil, nil
		})

	for _, tk := range []string{"AAPL", "MSFT", "AMZN", "TSLA", "NVDA"} {
		_, err := r.Submit(context.Background(), NewJob(tk, time.Now(), 1))
		require.NoError(t, err)
	}
	r.Wait()
	assert.LessOrEqual(t, peak, 2)
}

func TestScriptRunnerTimeoutAndFailure(t *testing.T) {
	var sawDeadline int32
	r := NewScriptRunner(RunnerConfig{Script: "fetch.sh", Timeout: 10 * time.Millisecond}, zerolog.Nop()).
		WithRunFunc(func(ctx context.Context, script string, args []string) ([]byte, error) {
			<-ctx.Done()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				atomic.StoreInt32(&sawDeadline, 1)
			}
			return []byte("partial output"), ctx.Err()
		})

	_, err := r.Submit(context.Background(), NewJob("AAPL", time.Now(), 1))
	require.NoError(t, err)
	r.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&sawDeadline))
}

func TestScriptRunnerQueuedJobGetsFullTimeout(t *testing.T) {
	var mu sync.Mutex
	started := map[string]error{}
	r := NewScriptRunner(RunnerConfig{Script: "fetch.sh", Concurrency: 1, Timeout: 100 * time.Millisecond}, zerolog.Nop()).
		WithRunFunc(func(ctx context.Context, script string, args []string) ([]byte, error) {
			mu.Lock()
			started[args[1]] = ctx.Err()
			mu.Unlock()
			if args[1] == "AAPL" {
				time.Sleep(150 * time.Millisecond)
			}
			return nil, nil
		})

	_, err := r.Submit(context.Background(), NewJob("AAPL", time.Now(), 1))
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = r.Submit(context.Background(), NewJob("MSFT", time.Now(), 1))
	require.NoError(t, err)
	r.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, started, "MSFT")
	assert.NoError(t, started["MSFT"])
}

func TestScriptRunnerCloseCancelsJobs(t *testing.T) {
	running := make(chan struct{})
	var once sync.Once
	var cancelled int32
	r := NewScriptRunner(RunnerConfig{Script: "fetch.sh", Concurrency: 1, Timeout: time.Hour}, zerolog.Nop()).
		WithRunFunc(func(ctx context.Context, script string, args []string) ([]byte, error) {
			once.Do(func() { close(running) })
			<-ctx.Done()
			if errors.Is(ctx.Err(), context.Canceled) {
				atomic.StoreInt32(&cancelled, 1)
			}
			return nil, ctx.Err()
		})

	_, err := r.Submit(context.Background(), NewJob("AAPL", time.Now(), 1))
	require.NoError(t, err)
	_, err = r.Submit(context.Background(), NewJob("MSFT", time.Now(), 1))
	require.NoError(t, err)
	<-running

	done := make(chan struct{})
	go func() {
		r.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&cancelled))
	assert.Equal(t, 0, r.InFlight())

	_, err = r.Submit(context.Background(), NewJob("TSLA", time.Now(), 1))
	assert.Error(t, err)
}

func TestScriptRunnerRejectsInvalidJob(t *testing.T) {
	r := NewScriptRunner(RunnerConfig{Script: "fetch.sh"}, zerolog.Nop())
	_, err := r.Submit(context.Background(), Job{})
	assert.Error(t, err)
	assert.Equal(t, 0, r.InFlight())
}
