package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

var _ Client = (*EthClient)(nil)

// EthClient is the go-ethereum backed Client
type EthClient struct {
	eth     *ethclient.Client
	rpc     *rpc.Client
	chainID *big.Int
	signer  types.Signer
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     30 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// Dial connects to rpcURL. When chainID is zero it is read from the node,
// otherwise the node is trusted to serve that chain.
func Dial(ctx context.Context, rpcURL string, chainID uint64, timeout time.Duration) (*EthClient, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rpcClient, err := rpc.DialOptions(ctx, rpcURL, rpc.WithHTTPClient(newHTTPClient(timeout)))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rpc client for %s: %w", rpcURL, err)
	}
	cli := ethclient.NewClient(rpcClient)

	id := new(big.Int).SetUint64(chainID)
	if chainID == 0 {
		id, err = cli.ChainID(ctx)
		if err != nil {
			rpcClient.Close()
			return nil, fmt.Errorf("failed to query chain id from %s: %w", rpcURL, err)
		}
	}

	return &EthClient{
		eth:     cli,
		rpc:     rpcClient,
		chainID: id,
		signer:  types.LatestSignerForChainID(id),
	}, nil
}

// ChainID returns the chain id the client signs for
func (e *EthClient) ChainID() *big.Int {
	return new(big.Int).Set(e.chainID)
}

func (e *EthClient) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	return e.eth.BalanceAt(ctx, account, nil)
}

func (e *EthClient) TransactionCount(ctx context.Context, account common.Address) (uint64, error) {
	return e.eth.PendingNonceAt(ctx, account)
}

func (e *EthClient) GasPrice(ctx context.Context) (*big.Int, error) {
	return e.eth.SuggestGasPrice(ctx)
}

func (e *EthClient) EstimateGas(ctx context.Context, intent Intent) (uint64, error) {
	return e.eth.EstimateGas(ctx, intent.CallMsg())
}

func (e *EthClient) SignTx(tx *types.Transaction, key *ecdsa.PrivateKey) (*types.Transaction, error) {
	return types.SignTx(tx, e.signer, key)
}

// SendTransaction broadcasts a signed transaction and returns its hash
func (e *EthClient) SendTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	if err := e.eth.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}

func (e *EthClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return e.eth.TransactionReceipt(ctx, hash)
}

func (e *EthClient) Close() {
	e.rpc.Close()
}
