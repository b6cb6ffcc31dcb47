package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/circuitbreaker"
)

// ErrUnavailable is returned by a Guarded client while its breaker is open
var ErrUnavailable = circuitbreaker.ErrOpen

var _ Client = (*Guarded)(nil)

// Guarded wraps a Client with a circuit breaker. Only failures of the endpoint
// itself count against the breaker: a JSON-RPC error response means the node
// is up and answering.
type Guarded struct {
	next    Client
	breaker *circuitbreaker.Breaker
}

// NewGuarded wraps next with a breaker configured by cfg
func NewGuarded(next Client, cfg circuitbreaker.Config) *Guarded {
	return &Guarded{next: next, breaker: circuitbreaker.New(cfg)}
}

// Breaker exposes the underlying breaker for inspection
func (g *Guarded) Breaker() *circuitbreaker.Breaker {
	return g.breaker
}

// IsEndpointFailure reports whether err means the node could not be reached
// or did not answer, as opposed to answering with an error.
func IsEndpointFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ethereum.NotFound) {
		return false
	}
	var rpcErr rpc.Error
	return !errors.As(err, &rpcErr)
}

func (g *Guarded) BalanceAt(ctx context.Context, account common.Address) (balance *big.Int, err error) {
	err = g.breaker.Execute(func() error {
		balance, err = g.next.BalanceAt(ctx, account)
		return err
	}, IsEndpointFailure)
	return balance, err
}

func (g *Guarded) TransactionCount(ctx context.Context, account common.Address) (count uint64, err error) {
	err = g.breaker.Execute(func() error {
		count, err = g.next.TransactionCount(ctx, account)
		return err
	}, IsEndpointFailure)
	return count, err
}

func (g *Guarded) GasPrice(ctx context.Context) (price *big.Int, err error) {
	err = g.breaker.Execute(func() error {
		price, err = g.next.GasPrice(ctx)
		return err
	}, IsEndpointFailure)
	return price, err
}

func (g *Guarded) EstimateGas(ctx context.Context, intent Intent) (gas uint64, err error) {
	err = g.breaker.Execute(func() error {
		gas, err = g.next.EstimateGas(ctx, intent)
		return err
	}, IsEndpointFailure)
	return gas, err
}

// SignTx is local and never guarded
func (g *Guarded) SignTx(tx *types.Transaction, key *ecdsa.PrivateKey) (*types.Transaction, error) {
	return g.next.SignTx(tx, key)
}

func (g *Guarded) SendTransaction(ctx context.Context, tx *types.Transaction) (hash common.Hash, err error) {
	err = g.breaker.Execute(func() error {
		hash, err = g.next.SendTransaction(ctx, tx)
		return err
	}, IsEndpointFailure)
	return hash, err
}

func (g *Guarded) TransactionReceipt(ctx context.Context, hash common.Hash) (receipt *types.Receipt, err error) {
	err = g.breaker.Execute(func() error {
		receipt, err = g.next.TransactionReceipt(ctx, hash)
		return err
	}, IsEndpointFailure)
	return receipt, err
}
