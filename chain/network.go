// Package chain holds the per-network context shared by every flow and the
// client capability used to talk to a node.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	Moonveil = "moonveil"
	Sepolia  = "sepolia"
)

// Default gas limits observed on successful transactions. Used when estimation fails.
const (
	DefaultTransferGas       uint64 = 21000
	DefaultMoonveilBridgeGas uint64 = 194919
	DefaultSepoliaBridgeGas  uint64 = 327633
)

var (
	ErrInvalidNetwork = fmt.Errorf("invalid network")
)

// Client is the node capability consumed by the flows
type Client interface {
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	// TransactionCount returns the pending transaction count of account
	TransactionCount(ctx context.Context, account common.Address) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, intent Intent) (uint64, error)
	SignTx(tx *types.Transaction, key *ecdsa.PrivateKey) (*types.Transaction, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// TxKind tells which static gas default applies to an intent
type TxKind int

const (
	TxKindTransfer TxKind = iota
	TxKindBridge
)

func (k TxKind) String() string {
	switch k {
	case TxKindTransfer:
		return "transfer"
	case TxKindBridge:
		return "bridge"
	default:
		return "unknown"
	}
}

// Network is the immutable context of one chain. Fee bounds are in wei.
type Network struct {
	Name            string
	ChainID         uint64
	BridgeNetworkID uint32
	Symbol          string
	ExplorerURL     string

	MinGasPrice   *big.Int
	MaxGasPrice   *big.Int
	GasMultiplier float64

	DefaultTransferGas uint64
	DefaultBridgeGas   uint64

	Client Client
}

// Validate checks the invariants the estimators rely on
func (n *Network) Validate() error {
	if n.Name == "" {
		return errors.Join(ErrInvalidNetwork, fmt.Errorf("name is empty"))
	}
	if n.Client == nil {
		return errors.Join(ErrInvalidNetwork, fmt.Errorf("%s: client is nil", n.Name))
	}
	if n.MinGasPrice == nil || n.MaxGasPrice == nil || n.MinGasPrice.Sign() < 0 {
		return errors.Join(ErrInvalidNetwork, fmt.Errorf("%s: gas price bounds must be set", n.Name))
	}
	if n.MinGasPrice.Cmp(n.MaxGasPrice) > 0 {
		return errors.Join(ErrInvalidNetwork, fmt.Errorf("%s: min gas price %s above max %s", n.Name, n.MinGasPrice, n.MaxGasPrice))
	}
	if n.GasMultiplier <= 0 {
		return errors.Join(ErrInvalidNetwork, fmt.Errorf("%s: gas multiplier must be positive, got %v", n.Name, n.GasMultiplier))
	}
	return nil
}

// ChainIDBig returns the chain id as used by signers
func (n *Network) ChainIDBig() *big.Int {
	return new(big.Int).SetUint64(n.ChainID)
}

// DefaultGas returns the static gas limit for an intent kind
func (n *Network) DefaultGas(kind TxKind) uint64 {
	if kind == TxKindBridge {
		if n.DefaultBridgeGas != 0 {
			return n.DefaultBridgeGas
		}
		if n.Name == Moonveil {
			return DefaultMoonveilBridgeGas
		}
		return DefaultSepoliaBridgeGas
	}
	if n.DefaultTransferGas == 0 {
		return DefaultTransferGas
	}
	return n.DefaultTransferGas
}

// TxURL links a transaction hash on the network explorer
func (n *Network) TxURL(hash string) string {
	if n.ExplorerURL == "" {
		return hash
	}
	return strings.TrimSuffix(n.ExplorerURL, "/") + "/tx/" + hash
}

func (n *Network) String() string {
	return fmt.Sprintf("%s(%d)", n.Name, n.ChainID)
}

// Intent describes a transaction before nonce and fees are known.
// A zero Gas or nil GasPrice is filled in by the pipeline on every attempt.
type Intent struct {
	From     common.Address
	To       common.Address
	Value    *big.Int
	Data     []byte
	Kind     TxKind
	Gas      uint64
	GasPrice *big.Int
}

// WithoutGas returns a copy of the intent with the gas limit cleared, for estimation
func (i Intent) WithoutGas() Intent {
	i.Gas = 0
	return i
}

// CallMsg converts the intent into the message used by eth_estimateGas
func (i Intent) CallMsg() ethereum.CallMsg {
	to := i.To
	return ethereum.CallMsg{
		From:     i.From,
		To:       &to,
		Gas:      i.Gas,
		GasPrice: i.GasPrice,
		Value:    i.Value,
		Data:     i.Data,
	}
}
