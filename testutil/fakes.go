package testutil

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/chain"
)

// ============================================================
// Fake Chain Client
// ============================================================

var _ chain.Client = (*FakeClient)(nil)

// FakeClient is a scriptable chain.Client. Zero values answer successfully:
// balance 0, nonce 0, 1 gwei gas price, 21000 gas estimate.
type FakeClient struct {
	mu     sync.Mutex
	signer types.Signer

	Balance    *big.Int
	BalanceSeq []*big.Int // consumed one per call before falling back to Balance
	BalanceErr error

	PendingNonce uint64
	NonceErrs    []error // consumed one per call, nil entries succeed

	Price    *big.Int
	PriceErr error

	Estimate    uint64
	EstimateErr error

	SignErr  error
	SendErrs []error // consumed one per broadcast, exhausted means success

	ReceiptFunc func(hash common.Hash) (*types.Receipt, error)

	sent      []*types.Transaction
	estimated []chain.Intent
	calls     map[string]int
}

// NewFakeClient creates a fake client signing for chainID
func NewFakeClient(chainID uint64) *FakeClient {
	return &FakeClient{
		signer: types.LatestSignerForChainID(new(big.Int).SetUint64(chainID)),
		calls:  make(map[string]int),
	}
}

func (f *FakeClient) record(method string) {
	f.calls[method]++
}

// Calls returns how many times method was invoked
func (f *FakeClient) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// TotalCalls returns the number of calls across all methods
func (f *FakeClient) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// Sent returns every transaction handed to SendTransaction, failed or not
func (f *FakeClient) Sent() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Transaction(nil), f.sent...)
}

// SentNonces returns the nonces of Sent in order
func (f *FakeClient) SentNonces() []uint64 {
	var nonces []uint64
	for _, tx := range f.Sent() {
		nonces = append(nonces, tx.Nonce())
	}
	return nonces
}

// Estimated returns the intents passed to EstimateGas
func (f *FakeClient) Estimated() []chain.Intent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chain.Intent(nil), f.estimated...)
}

func (f *FakeClient) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("BalanceAt")
	if f.BalanceErr != nil {
		return nil, f.BalanceErr
	}
	if len(f.BalanceSeq) > 0 {
		b := f.BalanceSeq[0]
		f.BalanceSeq = f.BalanceSeq[1:]
		return new(big.Int).Set(b), nil
	}
	if f.Balance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(f.Balance), nil
}

func (f *FakeClient) TransactionCount(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("TransactionCount")
	if len(f.NonceErrs) > 0 {
		err := f.NonceErrs[0]
		f.NonceErrs = f.NonceErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	return f.PendingNonce, nil
}

func (f *FakeClient) GasPrice(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GasPrice")
	if f.PriceErr != nil {
		return nil, f.PriceErr
	}
	if f.Price == nil {
		return new(big.Int).Set(OneGwei), nil
	}
	return new(big.Int).Set(f.Price), nil
}

func (f *FakeClient) EstimateGas(ctx context.Context, intent chain.Intent) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("EstimateGas")
	f.estimated = append(f.estimated, intent)
	if f.EstimateErr != nil {
		return 0, f.EstimateErr
	}
	if f.Estimate == 0 {
		return 21000, nil
	}
	return f.Estimate, nil
}

func (f *FakeClient) SignTx(tx *types.Transaction, key *ecdsa.PrivateKey) (*types.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SignTx")
	if f.SignErr != nil {
		return nil, f.SignErr
	}
	return types.SignTx(tx, f.signer, key)
}

func (f *FakeClient) SendTransaction(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SendTransaction")
	f.sent = append(f.sent, tx)
	if len(f.SendErrs) > 0 {
		err := f.SendErrs[0]
		f.SendErrs = f.SendErrs[1:]
		if err != nil {
			return common.Hash{}, err
		}
	}
	return tx.Hash(), nil
}

func (f *FakeClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	fn := f.ReceiptFunc
	f.record("TransactionReceipt")
	f.mu.Unlock()
	if fn != nil {
		return fn(hash)
	}
	return NewSuccessReceipt(hash), nil
}

// ============================================================
// Fake Faucet Transport
// ============================================================

// Response is one scripted faucet reply
type Response struct {
	Status int
	Body   string
	Err    error
}

// PostCall records one faucet request
type PostCall struct {
	URL     string
	Headers map[string]string
	Body    []byte
	Proxy   string
}

// FakePoster replays Responses in order and repeats the last one when exhausted
type FakePoster struct {
	mu        sync.Mutex
	Responses []Response
	calls     []PostCall
}

// NewFakePoster creates a poster replaying responses
func NewFakePoster(responses ...Response) *FakePoster {
	return &FakePoster{Responses: responses}
}

func (p *FakePoster) Post(ctx context.Context, url string, headers map[string]string, body []byte, proxy string) (int, []byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, PostCall{URL: url, Headers: headers, Body: body, Proxy: proxy})
	if len(p.Responses) == 0 {
		return 0, nil, errors.New("fake poster: no response scripted")
	}
	idx := len(p.calls) - 1
	if idx >= len(p.Responses) {
		idx = len(p.Responses) - 1
	}
	r := p.Responses[idx]
	if r.Err != nil {
		return 0, nil, r.Err
	}
	return r.Status, []byte(r.Body), nil
}

// Calls returns the recorded requests
func (p *FakePoster) Calls() []PostCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PostCall(nil), p.calls...)
}

// ============================================================
// Sleeper
// ============================================================

// Sleeper records requested sleeps and returns immediately unless ctx is done
type Sleeper struct {
	mu        sync.Mutex
	durations []time.Duration
}

func (s *Sleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.durations = append(s.durations, d)
	s.mu.Unlock()
	return ctx.Err()
}

// Durations returns the recorded sleeps
func (s *Sleeper) Durations() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.durations...)
}

// Count returns the number of recorded sleeps
func (s *Sleeper) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.durations)
}
