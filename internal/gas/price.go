// Package gas prices and sizes transactions. Estimation never fails the
// caller: when the node cannot answer, a safe per-network default is used.
package gas

import (
	"context"
	"math"
	"math/big"

	"github.com/KyberNetwork/logger"

	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/chain"
)

const (
	// RetryGrowth is the gas price increase applied per retry
	RetryGrowth = 1.2 // 20% increase
	// LimitBuffer is the safety margin applied on top of estimated gas
	LimitBuffer = 1.2
)

// PriceEstimator computes the legacy gas price for an attempt
type PriceEstimator struct {
	RetryGrowth float64
}

// NewPriceEstimator returns an estimator escalating by RetryGrowth per attempt
func NewPriceEstimator() *PriceEstimator {
	return &PriceEstimator{RetryGrowth: RetryGrowth}
}

// Price returns clamp(networkFee * multiplier * growth^attemptIndex, min, max) in wei.
// When the network fee cannot be read the minimum price is returned.
func (e *PriceEstimator) Price(ctx context.Context, network *chain.Network, attemptIndex int) *big.Int {
	fee, err := network.Client.GasPrice(ctx)
	if err != nil || fee == nil {
		logger.WithFields(logger.Fields{
			"network": network.Name,
			"error":   err,
			"min":     chain.FormatGwei(network.MinGasPrice),
		}).Warn("gas price unavailable, using minimum")
		return new(big.Int).Set(network.MinGasPrice)
	}

	if attemptIndex < 0 {
		attemptIndex = 0
	}
	growth := e.RetryGrowth
	if growth <= 0 {
		growth = RetryGrowth
	}
	multiplier := network.GasMultiplier * math.Pow(growth, float64(attemptIndex))

	price := clamp(scale(fee, multiplier), network.MinGasPrice, network.MaxGasPrice)

	logger.WithFields(logger.Fields{
		"network":     network.Name,
		"attempt":     attemptIndex,
		"network_fee": chain.FormatGwei(fee),
		"multiplier":  multiplier,
		"price_gwei":  chain.FormatGwei(price),
	}).Debug("gas price computed")
	return price
}

// scale returns floor(v * m) computed in float64
func scale(v *big.Int, m float64) *big.Int {
	f, _ := new(big.Float).SetInt(v).Float64()
	scaled := math.Floor(f * m)
	if math.IsInf(scaled, 0) || math.IsNaN(scaled) {
		return new(big.Int).Set(v)
	}
	out, _ := big.NewFloat(scaled).Int(nil)
	return out
}

func clamp(v, lo, hi *big.Int) *big.Int {
	switch {
	case v.Cmp(lo) < 0:
		return new(big.Int).Set(lo)
	case v.Cmp(hi) > 0:
		return new(big.Int).Set(hi)
	default:
		return v
	}
}
