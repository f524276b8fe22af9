package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

var errTransient = errors.New("too many requests")

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestPolicy_SucceedsAfterTransientFailures(t *testing.T) {
	sleeper := &recordingSleeper{}
	policy := Policy{
		Name:        "market-data",
		MaxAttempts: 7,
		BaseDelay:   5 * time.Second,
		Retryable:   func(err error) bool { return errors.Is(err, errTransient) },
		Sleep:       sleeper.Sleep,
		Logger:      arbor.NewLogger(),
	}

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 4 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}, sleeper.delays)
}

func TestPolicy_StopsOnNonRetryableError(t *testing.T) {
	sleeper := &recordingSleeper{}
	policy := Policy{
		MaxAttempts: 7,
		BaseDelay:   5 * time.Second,
		Retryable:   func(err error) bool { return errors.Is(err, errTransient) },
		Sleep:       sleeper.Sleep,
	}

	fatal := errors.New("symbol not found")
	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return fatal
	})

	require.Error(t, err)
	assert.True(t, IsNotRetryable(err))
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.delays)
}

func TestPolicy_ExhaustsAttempts(t *testing.T) {
	sleeper := &recordingSleeper{}
	policy := Policy{
		Name:        "web-search",
		MaxAttempts: 3,
		BaseDelay:   10 * time.Second,
		Sleep:       sleeper.Sleep,
	}

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errTransient
	})

	require.Error(t, err)
	assert.False(t, IsNotRetryable(err))
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
	// No sleep after the last attempt
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second}, sleeper.delays)
}

func TestPolicy_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := Policy{}.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Hour,
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}

	err := policy.Do(ctx, func(ctx context.Context) error { return errTransient })
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleep_ReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
