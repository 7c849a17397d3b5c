package embed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetryWithBackoff_SucceedsFirstTry(t *testing.T) {
	// Given: a function that succeeds immediately
	calls := 0
	fn := func() error {
		calls++
		return nil
	}

	// When: I run it with retries available
	err := RetryWithBackoff(context.Background(), fastRetryConfig(3), fn)

	// Then: it runs exactly once
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_RetriesUntilSuccess(t *testing.T) {
	// Given: a function that fails twice then succeeds
	calls := 0
	fn := func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}

	// When: I run it with three retries
	err := RetryWithBackoff(context.Background(), fastRetryConfig(3), fn)

	// Then: it succeeds on the third call
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	// Given: a function that always fails
	calls := 0
	lastErr := errors.New("still down")
	fn := func() error {
		calls++
		return lastErr
	}

	// When: I run it with two retries
	err := RetryWithBackoff(context.Background(), fastRetryConfig(2), fn)

	// Then: the initial try plus two retries ran and the last error is wrapped
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, lastErr)
	assert.Contains(t, err.Error(), "failed after 2 retries")
}

func TestRetryWithBackoff_ZeroRetriesRunsOnce(t *testing.T) {
	calls := 0
	fn := func() error {
		calls++
		return errors.New("boom")
	}

	err := RetryWithBackoff(context.Background(), fastRetryConfig(0), fn)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_CancelledContextStopsImmediately(t *testing.T) {
	// Given: an already-cancelled context
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	fn := func() error {
		calls++
		return errors.New("never retried")
	}

	// When: I run with retries available
	err := RetryWithBackoff(ctx, fastRetryConfig(5), fn)

	// Then: the function is never called
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestRetryWithBackoff_CancellationDuringDelayAborts(t *testing.T) {
	// Given: a config with a long retry delay and a failing function
	cfg := RetryConfig{
		MaxRetries:   3,
		InitialDelay: 10 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	fn := func() error {
		calls++
		cancel() // cancel while the backoff wait is pending
		return errors.New("fail")
	}

	// When: the context is cancelled during the first delay
	start := time.Now()
	err := RetryWithBackoff(ctx, cfg, fn)

	// Then: the wait aborts instead of sleeping out the delay
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRetryWithBackoff_DelayIsCappedAtMax(t *testing.T) {
	// Given: a multiplier that would blow past MaxDelay quickly
	cfg := RetryConfig{
		MaxRetries:   4,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   10.0,
	}

	calls := 0
	fn := func() error {
		calls++
		return errors.New("fail")
	}

	// When: all retries run
	start := time.Now()
	err := RetryWithBackoff(context.Background(), cfg, fn)

	// Then: total wait stays near MaxDelay per attempt, not exponential
	require.Error(t, err)
	assert.Equal(t, 5, calls)
	assert.Less(t, time.Since(start), time.Second)
}
