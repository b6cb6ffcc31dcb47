package moonveil

import (
	"time"
)

// Timing constants of the per-account flows
const (
	// Faucet balance confirmation
	BalanceWaitInterval = 5 * time.Second
	BalanceWaitTimeout  = 120 * time.Second

	// Receipt confirmation polling, when enabled
	DefaultReceiptInterval = 3 * time.Second

	// Pause between two bridge operations of one direction
	MinBridgePause = 3 * time.Second
	MaxBridgePause = 7 * time.Second

	// Pause between two accounts
	MinAccountPause = 5 * time.Second
	MaxAccountPause = 15 * time.Second

	// FaucetTimeout bounds a single faucet HTTP request
	FaucetTimeout = 30 * time.Second
)

// DefaultTransferAmountPercentage is used when configuration leaves it unset
const DefaultTransferAmountPercentage = 90
