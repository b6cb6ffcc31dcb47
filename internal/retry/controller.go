// Package retry drives a fallible operation until it reaches a terminal
// outcome or runs out of attempts, backing off exponentially with jitter.
package retry

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/KyberNetwork/logger"

	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/attempt"
)

const (
	// MaxBackoff caps the un-jittered wait between attempts
	MaxBackoff = 300 * time.Second
	// DefaultBaseWait is the wait before the second attempt, before jitter
	DefaultBaseWait = 10 * time.Second
	// DefaultMaxAttempts bounds attempts when the caller passes no limit
	DefaultMaxAttempts = 5
)

// Operation is one attempt. attemptIndex starts at 0.
type Operation func(ctx context.Context, attemptIndex int) attempt.Outcome

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Controller runs operations with exponential backoff.
// It is safe for concurrent use.
type Controller struct {
	// Name labels log lines, e.g. "faucet" or "bridge"
	Name     string
	BaseWait time.Duration

	// OnRetry is called after a retryable outcome, before sleeping.
	// Callers use it to rotate transport.
	OnRetry func(attemptIndex int, outcome attempt.Outcome)

	sleep SleepFunc

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Controller
type Option func(*Controller)

// WithSleep replaces the context-aware timer used between attempts
func WithSleep(sleep SleepFunc) Option {
	return func(c *Controller) {
		c.sleep = sleep
	}
}

// WithRand replaces the jitter source
func WithRand(rng *rand.Rand) Option {
	return func(c *Controller) {
		c.rng = rng
	}
}

// WithOnRetry sets the retry callback
func WithOnRetry(fn func(attemptIndex int, outcome attempt.Outcome)) Option {
	return func(c *Controller) {
		c.OnRetry = fn
	}
}

// New creates a controller. A non-positive baseWait uses DefaultBaseWait.
func New(name string, baseWait time.Duration, opts ...Option) *Controller {
	if baseWait <= 0 {
		baseWait = DefaultBaseWait
	}
	c := &Controller{
		Name:     name,
		BaseWait: baseWait,
		sleep:    Sleep,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sleep waits for d unless ctx is done first
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Backoff returns min(MaxBackoff, BaseWait*2^attemptIndex) scaled by a jitter
// drawn uniformly from [0.5, 1.5).
func (c *Controller) Backoff(attemptIndex int) time.Duration {
	return time.Duration(float64(c.ceiling(attemptIndex)) * c.jitter())
}

func (c *Controller) ceiling(attemptIndex int) time.Duration {
	if attemptIndex < 0 {
		attemptIndex = 0
	}
	wait := float64(c.BaseWait) * math.Pow(2, float64(attemptIndex))
	if wait > float64(MaxBackoff) {
		return MaxBackoff
	}
	return time.Duration(wait)
}

func (c *Controller) jitter() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return 0.5 + c.rng.Float64()
}

// Run invokes op until it returns a terminal outcome or maxAttempts attempts
// were made. It never sleeps after the last attempt. Cancellation while
// waiting returns a FatalFailure wrapping the context error.
func (c *Controller) Run(ctx context.Context, maxAttempts int, op Operation) attempt.Outcome {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var outcome attempt.Outcome
	for i := 0; i < maxAttempts; i++ {
		outcome = op(ctx, i)
		if outcome.IsTerminal() {
			return outcome
		}
		if i+1 >= maxAttempts {
			break
		}

		if c.OnRetry != nil {
			c.OnRetry(i, outcome)
		}
		wait := c.Backoff(i)
		logger.WithFields(logger.Fields{
			"operation":    c.Name,
			"attempt":      i + 1,
			"max_attempts": maxAttempts,
			"reason":       outcome.Reason,
			"error":        outcome.Err,
			"wait":         wait.String(),
		}).Warn("attempt failed, retrying")

		if err := c.sleep(ctx, wait); err != nil {
			return attempt.Fatal("canceled while waiting to retry", err)
		}
	}

	logger.WithFields(logger.Fields{
		"operation":    c.Name,
		"max_attempts": maxAttempts,
		"reason":       outcome.Reason,
		"error":        outcome.Err,
	}).Error("out of retries")
	return outcome
}
