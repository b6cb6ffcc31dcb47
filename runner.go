package moonveil

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/KyberNetwork/logger"
	"github.com/google/uuid"

	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/attempt"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/metrics"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/retry"
)

// AccountResult records what happened to one account during a pass. Steps that
// did not run are nil.
type AccountResult struct {
	Address  string
	Faucet   *ClaimResult
	Transfer *attempt.Outcome
	// Bridges maps each enabled direction to its successful operation count.
	// A direction succeeds with at least one successful operation.
	Bridges map[string]int
}

// Failed reports whether any step that ran ended without success
func (r AccountResult) Failed() bool {
	if r.Faucet != nil && !r.Faucet.Outcome.Succeeded() {
		return true
	}
	if r.Transfer != nil && !r.Transfer.IsSuccess() {
		return true
	}
	for _, successes := range r.Bridges {
		if successes == 0 {
			return true
		}
	}
	return false
}

// Summary is the result of one pass over all accounts
type Summary struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Accounts []AccountResult
}

// Failures returns the number of accounts with a failed step
func (s Summary) Failures() int {
	n := 0
	for _, r := range s.Accounts {
		if r.Failed() {
			n++
		}
	}
	return n
}

// Runner processes accounts one after another: faucet claim, self transfer,
// then every enabled bridge direction. Any step may be nil to disable it. A
// failing step never stops the following steps or accounts.
type Runner struct {
	pipeline *Pipeline
	faucet   *FaucetFlow
	transfer *TransferFlow
	bridge   *BridgeScheduler
	specs    []BridgeOperationSpec

	sleep              retry.SleepFunc
	pauseMin, pauseMax time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithFaucet enables the faucet step
func WithFaucet(f *FaucetFlow) RunnerOption {
	return func(r *Runner) {
		r.faucet = f
	}
}

// WithTransfer enables the self transfer step
func WithTransfer(t *TransferFlow) RunnerOption {
	return func(r *Runner) {
		r.transfer = t
	}
}

// WithBridge enables the bridge step for specs
func WithBridge(b *BridgeScheduler, specs []BridgeOperationSpec) RunnerOption {
	return func(r *Runner) {
		r.bridge = b
		r.specs = specs
	}
}

// WithAccountPause sets the random pause range between two accounts
func WithAccountPause(lo, hi time.Duration) RunnerOption {
	return func(r *Runner) {
		r.pauseMin = lo
		r.pauseMax = hi
	}
}

// WithRunnerSleep replaces the timer used between accounts
func WithRunnerSleep(sleep retry.SleepFunc) RunnerOption {
	return func(r *Runner) {
		r.sleep = sleep
	}
}

// WithRunnerRand replaces the source of pauses between accounts
func WithRunnerRand(rng *rand.Rand) RunnerOption {
	return func(r *Runner) {
		r.rng = rng
	}
}

// NewRunner creates a runner resetting pipeline's nonces per account
func NewRunner(pipeline *Pipeline, opts ...RunnerOption) *Runner {
	r := &Runner{
		pipeline: pipeline,
		sleep:    retry.Sleep,
		pauseMin: MinAccountPause,
		pauseMax: MaxAccountPause,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one pass over accounts. It stops early only when ctx is done.
func (r *Runner) Run(ctx context.Context, accounts []*Account) Summary {
	summary := Summary{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}
	logger.WithFields(logger.Fields{
		"run_id":   summary.RunID,
		"accounts": len(accounts),
	}).Info("starting pass")

	for i, account := range accounts {
		if ctx.Err() != nil {
			break
		}
		result := r.processAccount(ctx, summary.RunID, i+1, len(accounts), account)
		summary.Accounts = append(summary.Accounts, result)

		label := "ok"
		if result.Failed() {
			label = "failed"
		}
		metrics.AccountsProcessed.WithLabelValues(label).Inc()

		if i+1 < len(accounts) {
			pause := r.drawPause()
			logger.WithFields(logger.Fields{
				"run_id": summary.RunID,
				"pause":  pause.String(),
			}).Info("waiting before next account")
			if err := r.sleep(ctx, pause); err != nil {
				break
			}
		}
	}

	summary.Finished = time.Now()
	logger.WithFields(logger.Fields{
		"run_id":    summary.RunID,
		"processed": len(summary.Accounts),
		"failed":    summary.Failures(),
		"elapsed":   summary.Finished.Sub(summary.Started).String(),
	}).Info("pass finished")
	return summary
}

// Loop runs a pass, waits interval, and repeats until ctx is done. A
// non-positive interval runs a single pass.
func (r *Runner) Loop(ctx context.Context, accounts []*Account, interval time.Duration) error {
	for {
		r.Run(ctx, accounts)
		if interval <= 0 {
			return ctx.Err()
		}
		logger.WithFields(logger.Fields{
			"interval": interval.String(),
			"next_at":  time.Now().Add(interval).Format(time.RFC3339),
		}).Info("waiting for next cycle")
		if err := r.sleep(ctx, interval); err != nil {
			return err
		}
	}
}

func (r *Runner) processAccount(ctx context.Context, runID string, index, total int, account *Account) AccountResult {
	result := AccountResult{Address: account.Address.Hex()}
	fields := logger.Fields{
		"run_id": runID,
		"wallet": account.Address.Hex(),
		"index":  index,
		"total":  total,
	}
	logger.WithFields(fields).Info("processing account")

	r.pipeline.ResetNonces()

	if r.faucet != nil {
		claim := r.faucet.Claim(ctx, account)
		result.Faucet = &claim
	}

	if r.transfer != nil {
		outcome := r.transfer.TransferToSelf(ctx, account)
		result.Transfer = &outcome
		if !outcome.IsSuccess() {
			logger.WithFields(logger.Fields{
				"run_id":  runID,
				"wallet":  account.Address.Hex(),
				"outcome": outcome.String(),
				"error":   outcome.Err,
			}).Error("transfer to self failed")
		}
	}

	if r.bridge != nil {
		result.Bridges = make(map[string]int)
		enabled := 0
		for _, spec := range r.specs {
			if !spec.Enabled {
				continue
			}
			enabled++
			successes := r.bridge.Run(ctx, account, spec)
			result.Bridges[spec.Direction.Name] = successes
			if successes == 0 {
				logger.WithFields(logger.Fields{
					"run_id":    runID,
					"wallet":    account.Address.Hex(),
					"direction": spec.Direction.String(),
				}).Warn("no bridge operation succeeded")
			}
		}
		if enabled == 0 {
			logger.WithFields(fields).Warn("no bridge direction enabled")
		}
	}

	return result
}

func (r *Runner) drawPause() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	span := r.pauseMax - r.pauseMin
	if span <= 0 {
		return r.pauseMin
	}
	// whole seconds
	secs := int64(span / time.Second)
	return r.pauseMin + time.Duration(r.rng.Int63n(secs+1))*time.Second
}
