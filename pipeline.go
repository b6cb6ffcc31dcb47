package moonveil

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/KyberNetwork/logger"
	retrygo "github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/chain"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/attempt"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/classify"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/gas"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/metrics"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/nonce"
)

// Pipeline turns an intent into a signed, broadcast transaction.
// One Pipeline serves one account at a time; it is not safe for concurrent use.
type Pipeline struct {
	nonces *nonce.Sequencer
	prices *gas.PriceEstimator
	limits *gas.LimitEstimator

	confirmTimeout  time.Duration
	receiptInterval time.Duration

	beforeBroadcast Hook
	afterBroadcast  Hook
	onMined         TxMinedHook
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithConfirmation waits up to timeout for a receipt after each successful
// broadcast, polling every interval. Zero timeout disables the wait.
func WithConfirmation(timeout, interval time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.confirmTimeout = timeout
		if interval > 0 {
			p.receiptInterval = interval
		}
	}
}

// WithBeforeBroadcast sets the hook run right before a signed tx is broadcast
func WithBeforeBroadcast(hook Hook) PipelineOption {
	return func(p *Pipeline) {
		p.beforeBroadcast = hook
	}
}

// WithAfterBroadcast sets the hook run right after a broadcast returns
func WithAfterBroadcast(hook Hook) PipelineOption {
	return func(p *Pipeline) {
		p.afterBroadcast = hook
	}
}

// WithTxMinedHook sets the hook run when a receipt is observed
func WithTxMinedHook(hook TxMinedHook) PipelineOption {
	return func(p *Pipeline) {
		p.onMined = hook
	}
}

// WithRetryGrowth overrides the per-attempt gas price growth factor
func WithRetryGrowth(growth float64) PipelineOption {
	return func(p *Pipeline) {
		p.prices.RetryGrowth = growth
	}
}

// NewPipeline creates a pipeline with its own nonce sequencer
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		nonces:          nonce.NewSequencer(),
		prices:          gas.NewPriceEstimator(),
		limits:          gas.NewLimitEstimator(),
		receiptInterval: DefaultReceiptInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ResetNonces forgets every tracked nonce. Called when a new account starts.
func (p *Pipeline) ResetNonces() {
	p.nonces.Reset()
}

// GasPrice returns the price the pipeline would use for attemptIndex
func (p *Pipeline) GasPrice(ctx context.Context, network *chain.Network, attemptIndex int) *big.Int {
	return p.prices.Price(ctx, network, attemptIndex)
}

// GasLimit returns the limit the pipeline would use for intent
func (p *Pipeline) GasLimit(ctx context.Context, intent chain.Intent, network *chain.Network) uint64 {
	return p.limits.Limit(ctx, intent, network)
}

// Submit runs one attempt: nonce, gas price, gas limit, build, sign, advance
// nonce, broadcast. The nonce is consumed as soon as the signed transaction is
// handed to the network, even if the broadcast then fails.
func (p *Pipeline) Submit(ctx context.Context, account *Account, intent chain.Intent, network *chain.Network, attemptIndex int) (outcome attempt.Outcome) {
	if network == nil {
		return attempt.Fatal("no network", ErrNetworkNil)
	}
	if account == nil {
		return attempt.Fatal("no account", ErrAccountNil)
	}

	metrics.PipelineAttempts.WithLabelValues(network.Name, intent.Kind.String()).Inc()
	defer func() {
		metrics.PipelineOutcomes.WithLabelValues(network.Name, outcome.Kind.String()).Inc()
	}()

	n, err := p.nonces.Next(ctx, account.Address, network)
	if err != nil {
		return attempt.Retryable("nonce unavailable", errors.Join(ErrAcquireNonceFailed, err))
	}

	gasPrice := intent.GasPrice
	if gasPrice == nil {
		gasPrice = p.prices.Price(ctx, network, attemptIndex)
	}
	gasLimit := intent.Gas
	if gasLimit == 0 {
		gasLimit = p.limits.Limit(ctx, intent, network)
	}

	to := intent.To
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    n,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    intent.Value,
		Data:     intent.Data,
	})

	signed, err := network.Client.SignTx(tx, account.Key)
	if err != nil {
		return attempt.Fatal("sign failed", errors.Join(ErrSignFailed, err))
	}

	if p.beforeBroadcast != nil {
		if hookErr := p.beforeBroadcast(signed, network, nil); hookErr != nil {
			return attempt.Fatal("before broadcast hook", errors.Join(ErrHookRejected, hookErr))
		}
	}

	p.nonces.Advance(account.Address, network)
	metrics.PipelineBroadcasts.WithLabelValues(network.Name).Inc()

	hash, broadcastErr := network.Client.SendTransaction(ctx, signed)

	if p.afterBroadcast != nil {
		if hookErr := p.afterBroadcast(signed, network, broadcastErr); hookErr != nil {
			return attempt.Fatal("after broadcast hook", errors.Join(ErrHookRejected, hookErr))
		}
	}

	fields := logger.Fields{
		"wallet":    account.Address.Hex(),
		"network":   network.Name,
		"kind":      intent.Kind.String(),
		"nonce":     n,
		"gas_price": chain.FormatGwei(gasPrice),
		"gas_limit": gasLimit,
		"attempt":   attemptIndex,
	}

	if classify.AlreadyKnown(broadcastErr) {
		logger.WithFields(logger.Fields{
			"wallet":  account.Address.Hex(),
			"network": network.Name,
			"nonce":   n,
			"tx_hash": signed.Hash().Hex(),
			"reply":   broadcastErr.Error(),
		}).Info("node already holds transaction")
		hash, broadcastErr = signed.Hash(), nil
	}

	if broadcastErr != nil {
		outcome = classify.Broadcast(broadcastErr)
		fields["error"] = broadcastErr
		fields["outcome"] = outcome.Kind.String()
		logger.WithFields(fields).Warn("broadcast failed")

		if outcome.Reason == classify.ReasonNonceTooLow {
			if syncErr := p.nonces.Sync(ctx, account.Address, network); syncErr != nil {
				logger.WithFields(logger.Fields{
					"wallet":  account.Address.Hex(),
					"network": network.Name,
					"error":   syncErr,
				}).Debug("nonce resync after nonce too low failed")
			}
		}
		return outcome
	}

	fields["tx_hash"] = hash.Hex()
	fields["explorer"] = network.TxURL(hash.Hex())
	logger.WithFields(fields).Info("transaction broadcast")

	if p.confirmTimeout > 0 {
		return p.confirm(ctx, signed, hash, network)
	}
	return attempt.Success(hash.Hex())
}

// confirm waits for the receipt of a broadcast transaction. A missing receipt
// is not a failure: the transaction is already on the wire.
func (p *Pipeline) confirm(ctx context.Context, tx *types.Transaction, hash common.Hash, network *chain.Network) attempt.Outcome {
	waitCtx, cancel := context.WithTimeout(ctx, p.confirmTimeout)
	defer cancel()

	attempts := uint(p.confirmTimeout/p.receiptInterval) + 1
	receipt, err := retrygo.DoWithData(func() (*types.Receipt, error) {
		return network.Client.TransactionReceipt(waitCtx, hash)
	},
		retrygo.Context(waitCtx),
		retrygo.Attempts(attempts),
		retrygo.Delay(p.receiptInterval),
		retrygo.DelayType(retrygo.FixedDelay),
		retrygo.LastErrorOnly(true),
	)
	if err != nil || receipt == nil {
		logger.WithFields(logger.Fields{
			"network": network.Name,
			"tx_hash": hash.Hex(),
			"timeout": p.confirmTimeout.String(),
			"error":   err,
		}).Warn("receipt not observed in time, treating broadcast as success")
		return attempt.Success(hash.Hex())
	}

	if p.onMined != nil {
		if hookErr := p.onMined(tx, receipt); hookErr != nil {
			return attempt.Fatal("tx mined hook", hookErr)
		}
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		logger.WithFields(logger.Fields{
			"network":  network.Name,
			"tx_hash":  hash.Hex(),
			"block":    receipt.BlockNumber,
			"gas_used": receipt.GasUsed,
		}).Error("transaction reverted")
		return attempt.Fatal("reverted", fmt.Errorf("%w: %s", ErrTxReverted, hash.Hex()))
	}

	logger.WithFields(logger.Fields{
		"network":  network.Name,
		"tx_hash":  hash.Hex(),
		"block":    receipt.BlockNumber,
		"gas_used": receipt.GasUsed,
	}).Info("transaction mined")
	return attempt.Success(hash.Hex())
}
