package moonveil

import (
	"context"
	"errors"
	"math/big"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/chain"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/attempt"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/bridge"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/metrics"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/retry"
)

// BridgeOperationSpec is the configured plan for one bridge direction.
// Amounts are in ether.
type BridgeOperationSpec struct {
	Direction bridge.Direction
	Enabled   bool
	AmountMin float64
	AmountMax float64
	CountMin  int
	CountMax  int
}

// CountRange returns the inclusive bounds the operation count is drawn from
func (s BridgeOperationSpec) CountRange() (int, int) {
	lo := s.CountMin
	if lo < 1 {
		lo = 1
	}
	hi := s.CountMax
	if hi < s.CountMin {
		hi = s.CountMin
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// BridgeScheduler runs the bridge operations of one direction for an account
type BridgeScheduler struct {
	pipeline    *Pipeline
	retry       *retry.Controller
	networks    map[string]*chain.Network
	contract    common.Address
	maxAttempts int

	sleep              retry.SleepFunc
	pauseMin, pauseMax time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// BridgeOption configures a BridgeScheduler
type BridgeOption func(*BridgeScheduler)

// WithBridgeSleep replaces the timer used between operations
func WithBridgeSleep(sleep retry.SleepFunc) BridgeOption {
	return func(s *BridgeScheduler) {
		s.sleep = sleep
	}
}

// WithBridgeRand replaces the source of operation counts, amounts and pauses
func WithBridgeRand(rng *rand.Rand) BridgeOption {
	return func(s *BridgeScheduler) {
		s.rng = rng
	}
}

// NewBridgeScheduler creates a scheduler sending to contract on the source
// network of each direction
func NewBridgeScheduler(pipeline *Pipeline, controller *retry.Controller, networks map[string]*chain.Network, contract common.Address, maxAttempts int, opts ...BridgeOption) *BridgeScheduler {
	s := &BridgeScheduler{
		pipeline:    pipeline,
		retry:       controller,
		networks:    networks,
		contract:    contract,
		maxAttempts: maxAttempts,
		sleep:       retry.Sleep,
		pauseMin:    MinBridgePause,
		pauseMax:    MaxBridgePause,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs a random number of bridge operations with random amounts and
// returns how many ended in success. A disabled spec returns 0 without
// touching the network.
func (s *BridgeScheduler) Run(ctx context.Context, account *Account, spec BridgeOperationSpec) int {
	if !spec.Enabled {
		logger.WithFields(logger.Fields{
			"direction": spec.Direction.Name,
		}).Debug("bridge direction disabled")
		return 0
	}
	if account == nil {
		return 0
	}

	source, ok := s.networks[spec.Direction.Source]
	target, ok2 := s.networks[spec.Direction.Target]
	if !ok || !ok2 {
		logger.WithFields(logger.Fields{
			"direction": spec.Direction.Name,
			"error":     ErrNetworkNotFound,
		}).Error("cannot bridge")
		return 0
	}

	count := s.drawCount(spec)
	logger.WithFields(logger.Fields{
		"wallet":    account.Address.Hex(),
		"direction": spec.Direction.String(),
		"count":     count,
	}).Info("starting bridge operations")

	successes := 0
	for i := 0; i < count; i++ {
		amount, err := s.drawAmount(spec)
		if err != nil {
			logger.WithFields(logger.Fields{
				"direction": spec.Direction.Name,
				"error":     err,
			}).Error("invalid bridge amount")
			metrics.BridgeOperations.WithLabelValues(spec.Direction.Name, attempt.KindFatalFailure.String()).Inc()
			continue
		}

		outcome := s.runOne(ctx, account, source, target, amount)
		metrics.BridgeOperations.WithLabelValues(spec.Direction.Name, outcome.Kind.String()).Inc()
		if outcome.IsSuccess() {
			successes++
		}
		logger.WithFields(logger.Fields{
			"wallet":    account.Address.Hex(),
			"direction": spec.Direction.String(),
			"operation": i + 1,
			"count":     count,
			"amount":    chain.FormatEther(amount),
			"outcome":   outcome.String(),
		}).Info("bridge operation finished")

		if i+1 < count {
			if err := s.sleep(ctx, s.drawPause()); err != nil {
				break
			}
		}
	}
	return successes
}

func (s *BridgeScheduler) runOne(ctx context.Context, account *Account, source, target *chain.Network, amount *big.Int) attempt.Outcome {
	payload, err := bridge.Encode(target.BridgeNetworkID, account.Address, amount, true)
	if err != nil {
		return attempt.Fatal("encode failed", errors.Join(ErrBridgeEncodeFailed, err))
	}
	intent := chain.Intent{
		From:  account.Address,
		To:    s.contract,
		Value: amount,
		Data:  payload,
		Kind:  chain.TxKindBridge,
	}
	return s.retry.Run(ctx, s.maxAttempts, func(ctx context.Context, attemptIndex int) attempt.Outcome {
		return s.pipeline.Submit(ctx, account, intent, source, attemptIndex)
	})
}

func (s *BridgeScheduler) drawCount(spec BridgeOperationSpec) int {
	lo, hi := spec.CountRange()
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rng.Intn(hi-lo+1)
}

// drawAmount draws uniformly from [AmountMin, AmountMax] with 8 fraction digits
func (s *BridgeScheduler) drawAmount(spec BridgeOperationSpec) (*big.Int, error) {
	s.mu.Lock()
	r := s.rng.Float64()
	s.mu.Unlock()
	v := spec.AmountMin + r*(spec.AmountMax-spec.AmountMin)
	return chain.ParseEther(strconv.FormatFloat(v, 'f', 8, 64))
}

func (s *BridgeScheduler) drawPause() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	span := s.pauseMax - s.pauseMin
	if span <= 0 {
		return s.pauseMin
	}
	return s.pauseMin + time.Duration(s.rng.Int63n(int64(span)+1))
}
