package gas

import (
	"context"
	"math"

	"github.com/KyberNetwork/logger"

	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/chain"
)

// LimitEstimator sizes the gas limit of an intent
type LimitEstimator struct {
	Buffer float64
}

// NewLimitEstimator returns an estimator applying LimitBuffer
func NewLimitEstimator() *LimitEstimator {
	return &LimitEstimator{Buffer: LimitBuffer}
}

// Limit estimates gas for the intent and applies the buffer, floored.
// On failure the network default for the intent kind is used.
func (e *LimitEstimator) Limit(ctx context.Context, intent chain.Intent, network *chain.Network) uint64 {
	estimated, err := network.Client.EstimateGas(ctx, intent.WithoutGas())
	if err != nil || estimated == 0 {
		fallback := network.DefaultGas(intent.Kind)
		logger.WithFields(logger.Fields{
			"network": network.Name,
			"kind":    intent.Kind.String(),
			"error":   err,
			"default": fallback,
		}).Warn("gas estimation failed, using default gas")
		return fallback
	}

	buffer := e.Buffer
	if buffer <= 0 {
		buffer = LimitBuffer
	}
	limit := uint64(math.Floor(float64(estimated) * buffer))

	logger.WithFields(logger.Fields{
		"network":   network.Name,
		"kind":      intent.Kind.String(),
		"estimated": estimated,
		"limit":     limit,
	}).Debug("gas limit estimated")
	return limit
}
