package retry

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/attempt"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/testutil"
)

func newTestController(sleeper *testutil.Sleeper, opts ...Option) *Controller {
	opts = append([]Option{WithSleep(sleeper.Sleep), WithRand(rand.New(rand.NewSource(1)))}, opts...)
	return New("test", 10*time.Second, opts...)
}

func TestRun_RetryableExhaustsAttempts(t *testing.T) {
	sleeper := &testutil.Sleeper{}
	c := newTestController(sleeper)

	calls := 0
	outcome := c.Run(context.Background(), 3, func(ctx context.Context, attemptIndex int) attempt.Outcome {
		assert.Equal(t, calls, attemptIndex)
		calls++
		return attempt.Retryable("timeout", errors.New("i/o timeout"))
	})

	assert.Equal(t, 3, calls)
	assert.Equal(t, attempt.KindRetryableFailure, outcome.Kind)
	assert.Equal(t, 2, sleeper.Count(), "must not sleep after the final attempt")
}

func TestRun_TerminalOutcomesStopImmediately(t *testing.T) {
	tests := []struct {
		name    string
		outcome attempt.Outcome
	}{
		{"success", attempt.Success("0xabc")},
		{"rate limited", attempt.RateLimited("wait an hour")},
		{"fatal", attempt.Fatal("insufficient funds", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sleeper := &testutil.Sleeper{}
			c := newTestController(sleeper)
			calls := 0
			got := c.Run(context.Background(), 5, func(ctx context.Context, attemptIndex int) attempt.Outcome {
				calls++
				return tt.outcome
			})
			assert.Equal(t, 1, calls)
			assert.Equal(t, tt.outcome, got)
			assert.Zero(t, sleeper.Count())
		})
	}
}

func TestRun_SucceedsAfterRetries(t *testing.T) {
	sleeper := &testutil.Sleeper{}
	var retried []int
	c := newTestController(sleeper, WithOnRetry(func(attemptIndex int, outcome attempt.Outcome) {
		retried = append(retried, attemptIndex)
	}))

	got := c.Run(context.Background(), 5, func(ctx context.Context, attemptIndex int) attempt.Outcome {
		if attemptIndex < 2 {
			return attempt.Retryable("nonce too low", nil)
		}
		return attempt.Success("0xdef")
	})

	assert.True(t, got.IsSuccess())
	assert.Equal(t, "0xdef", got.Hash)
	assert.Equal(t, []int{0, 1}, retried)
	assert.Equal(t, 2, sleeper.Count())
}

func TestRun_NonPositiveMaxAttempts(t *testing.T) {
	sleeper := &testutil.Sleeper{}
	c := newTestController(sleeper)
	calls := 0
	c.Run(context.Background(), 0, func(ctx context.Context, attemptIndex int) attempt.Outcome {
		calls++
		return attempt.Retryable("timeout", nil)
	})
	assert.Equal(t, 1, calls)
	assert.Zero(t, sleeper.Count())
}

func TestRun_CanceledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := New("test", time.Hour, WithRand(rand.New(rand.NewSource(1))))

	calls := 0
	got := c.Run(ctx, 3, func(ctx context.Context, attemptIndex int) attempt.Outcome {
		calls++
		cancel()
		return attempt.Retryable("timeout", nil)
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, attempt.KindFatalFailure, got.Kind)
	assert.ErrorIs(t, got.Err, context.Canceled)
}

func TestBackoff(t *testing.T) {
	c := New("test", 10*time.Second, WithRand(rand.New(rand.NewSource(42))))

	t.Run("within jitter bounds of the ceiling", func(t *testing.T) {
		for i := 0; i < 12; i++ {
			ceiling := c.ceiling(i)
			for n := 0; n < 50; n++ {
				d := c.Backoff(i)
				assert.GreaterOrEqual(t, d, ceiling/2)
				assert.Less(t, d, ceiling*3/2)
				assert.LessOrEqual(t, d, MaxBackoff*3/2)
			}
		}
	})

	t.Run("ceiling doubles then caps", func(t *testing.T) {
		assert.Equal(t, 10*time.Second, c.ceiling(0))
		assert.Equal(t, 20*time.Second, c.ceiling(1))
		assert.Equal(t, 160*time.Second, c.ceiling(4))
		assert.Equal(t, MaxBackoff, c.ceiling(5))
		assert.Equal(t, MaxBackoff, c.ceiling(1000))
	})

	t.Run("non-decreasing in expectation", func(t *testing.T) {
		mean := func(i int) time.Duration {
			var total time.Duration
			for n := 0; n < 200; n++ {
				total += c.Backoff(i)
			}
			return total / 200
		}
		prev := mean(0)
		for i := 1; i < 8; i++ {
			cur := mean(i)
			require.GreaterOrEqual(t, cur, prev*9/10, "attempt %d", i)
			prev = cur
		}
	})
}

func TestSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}
