package moonveil

import (
	"context"
	"errors"
	"math/big"

	"github.com/KyberNetwork/logger"

	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/chain"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/attempt"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/retry"
)

// TransferFlow sends a percentage of an account's balance back to itself
type TransferFlow struct {
	pipeline    *Pipeline
	retry       *retry.Controller
	network     *chain.Network
	percentage  int64
	maxAttempts int
}

// NewTransferFlow creates a self-transfer flow on network. percentage is
// clamped to [1, 100].
func NewTransferFlow(pipeline *Pipeline, controller *retry.Controller, network *chain.Network, percentage int64, maxAttempts int) *TransferFlow {
	if percentage <= 0 {
		percentage = DefaultTransferAmountPercentage
	}
	if percentage > 100 {
		percentage = 100
	}
	return &TransferFlow{
		pipeline:    pipeline,
		retry:       controller,
		network:     network,
		percentage:  percentage,
		maxAttempts: maxAttempts,
	}
}

// TransferToSelf sends balance*percentage/100 minus the gas cost to the
// account itself. A zero balance, or a balance too small to cover gas, is a
// success without any broadcast.
func (f *TransferFlow) TransferToSelf(ctx context.Context, account *Account) attempt.Outcome {
	if account == nil {
		return attempt.Fatal("no account", ErrAccountNil)
	}

	return f.retry.Run(ctx, f.maxAttempts, func(ctx context.Context, attemptIndex int) attempt.Outcome {
		balance, err := f.network.Client.BalanceAt(ctx, account.Address)
		if err != nil {
			return attempt.Retryable("balance unavailable", errors.Join(ErrBalanceUnavailable, err))
		}
		if balance.Sign() == 0 {
			logger.WithFields(logger.Fields{
				"wallet":  account.Address.Hex(),
				"network": f.network.Name,
			}).Warn("no balance to transfer")
			return attempt.Success("")
		}

		intent := chain.Intent{
			From: account.Address,
			To:   account.Address,
			Kind: chain.TxKindTransfer,
		}
		gasPrice := f.pipeline.GasPrice(ctx, f.network, attemptIndex)
		gasLimit := f.pipeline.GasLimit(ctx, intent, f.network)

		value := TransferAmount(balance, f.percentage, gasLimit, gasPrice)
		if value.Sign() <= 0 {
			logger.WithFields(logger.Fields{
				"wallet":  account.Address.Hex(),
				"network": f.network.Name,
				"balance": chain.FormatEther(balance),
			}).Warn("balance too low to cover gas")
			return attempt.Success("")
		}

		intent.Value = value
		intent.Gas = gasLimit
		intent.GasPrice = gasPrice

		logger.WithFields(logger.Fields{
			"wallet":  account.Address.Hex(),
			"network": f.network.Name,
			"amount":  chain.FormatEther(value),
			"symbol":  f.network.Symbol,
		}).Info("sending transfer to self")
		return f.pipeline.Submit(ctx, account, intent, f.network, attemptIndex)
	})
}

// TransferAmount returns balance*percentage/100 - gasLimit*gasPrice.
// The result may be zero or negative.
func TransferAmount(balance *big.Int, percentage int64, gasLimit uint64, gasPrice *big.Int) *big.Int {
	share := new(big.Int).Mul(balance, big.NewInt(percentage))
	share.Quo(share, big.NewInt(100))
	cost := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), gasPrice)
	return share.Sub(share, cost)
}
