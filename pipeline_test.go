package moonveil

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/chain"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/attempt"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/metrics"
	tu "github.com/Usernameusernamenotavailbleisnot/m00nv3il/testutil"
)

func testAccount(t *testing.T) *Account {
	t.Helper()
	acc, err := NewAccount(tu.TestPrivateKeyHex)
	require.NoError(t, err)
	return acc
}

func transferIntent(acc *Account) chain.Intent {
	return chain.Intent{
		From:  acc.Address,
		To:    tu.TestAddr2,
		Value: big.NewInt(1000),
		Kind:  chain.TxKindTransfer,
	}
}

func TestPipeline_Submit_Success(t *testing.T) {
	client := tu.NewFakeClient(tu.ChainIDMoonveil)
	client.PendingNonce = 7
	network := tu.NewMoonveil(client)
	acc := testAccount(t)
	p := NewPipeline()

	before := testutil.ToFloat64(metrics.PipelineBroadcasts.WithLabelValues(network.Name))

	outcome := p.Submit(context.Background(), acc, transferIntent(acc), network, 0)

	require.Equal(t, attempt.KindSuccess, outcome.Kind)
	sent := client.Sent()
	require.Len(t, sent, 1)
	tx := sent[0]
	assert.Equal(t, tx.Hash().Hex(), outcome.Hash)
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, big.NewInt(1_100_000_000), tx.GasPrice(), "1 gwei network fee times 1.1")
	assert.Equal(t, uint64(25200), tx.Gas(), "21000 estimate plus 20%")
	assert.Equal(t, tu.TestAddr2, *tx.To())
	assert.Equal(t, big.NewInt(1000), tx.Value())
	assert.Equal(t, uint8(types.LegacyTxType), tx.Type())

	signer := types.LatestSignerForChainID(network.ChainIDBig())
	from, err := types.Sender(signer, tx)
	require.NoError(t, err)
	assert.Equal(t, acc.Address, from)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.PipelineBroadcasts.WithLabelValues(network.Name)))
}

func TestPipeline_Submit_NonceAdvancesWithoutRequery(t *testing.T) {
	client := tu.NewFakeClient(tu.ChainIDMoonveil)
	client.PendingNonce = 3
	network := tu.NewMoonveil(client)
	acc := testAccount(t)
	p := NewPipeline()

	for i := 0; i < 3; i++ {
		require.True(t, p.Submit(context.Background(), acc, transferIntent(acc), network, 0).IsSuccess())
	}

	assert.Equal(t, []uint64{3, 4, 5}, client.SentNonces())
	assert.Equal(t, 1, client.Calls("TransactionCount"))
}

func TestPipeline_Submit_FailedBroadcastConsumesNonce(t *testing.T) {
	client := tu.NewFakeClient(tu.ChainIDMoonveil)
	client.PendingNonce = 10
	client.SendErrs = []error{errors.New("connection reset by peer")}
	network := tu.NewMoonveil(client)
	acc := testAccount(t)
	p := NewPipeline()

	first := p.Submit(context.Background(), acc, transferIntent(acc), network, 0)
	assert.Equal(t, attempt.KindRetryableFailure, first.Kind)

	second := p.Submit(context.Background(), acc, transferIntent(acc), network, 1)
	assert.True(t, second.IsSuccess())

	assert.Equal(t, []uint64{10, 11}, client.SentNonces())
}

func TestPipeline_Submit_BroadcastClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want attempt.Kind
	}{
		{"insufficient funds is fatal", errors.New("insufficient funds for gas * price + value"), attempt.KindFatalFailure},
		{"underpriced is retryable", errors.New("replacement transaction underpriced"), attempt.KindRetryableFailure},
		{"timeout is retryable", context.DeadlineExceeded, attempt.KindRetryableFailure},
		{"revert is fatal", errors.New("execution reverted"), attempt.KindFatalFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := tu.NewFakeClient(tu.ChainIDMoonveil)
			client.SendErrs = []error{tt.err}
			network := tu.NewMoonveil(client)
			acc := testAccount(t)

			outcome := NewPipeline().Submit(context.Background(), acc, transferIntent(acc), network, 0)
			assert.Equal(t, tt.want, outcome.Kind)
			assert.ErrorIs(t, outcome.Err, tt.err)
		})
	}
}

func TestPipeline_Submit_AlreadyKnownIsBroadcast(t *testing.T) {
	client := tu.NewFakeClient(tu.ChainIDMoonveil)
	client.PendingNonce = 4
	client.SendErrs = []error{errors.New("already known")}
	network := tu.NewMoonveil(client)
	acc := testAccount(t)

	outcome := NewPipeline().Submit(context.Background(), acc, transferIntent(acc), network, 0)

	require.Equal(t, attempt.KindSuccess, outcome.Kind)
	sent := client.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, sent[0].Hash().Hex(), outcome.Hash)
}

func TestPipeline_Submit_NonceTooLowResyncs(t *testing.T) {
	client := tu.NewFakeClient(tu.ChainIDMoonveil)
	client.PendingNonce = 5
	network := tu.NewMoonveil(client)
	acc := testAccount(t)
	p := NewPipeline()

	require.True(t, p.Submit(context.Background(), acc, transferIntent(acc), network, 0).IsSuccess())

	// another sender used nonces 6..9
	client.PendingNonce = 10
	client.SendErrs = []error{errors.New("nonce too low")}

	outcome := p.Submit(context.Background(), acc, transferIntent(acc), network, 0)
	assert.Equal(t, attempt.KindRetryableFailure, outcome.Kind)

	require.True(t, p.Submit(context.Background(), acc, transferIntent(acc), network, 1).IsSuccess())
	assert.Equal(t, []uint64{5, 6, 10}, client.SentNonces())
}

func TestPipeline_Submit_NonceUnavailable(t *testing.T) {
	client := tu.NewFakeClient(tu.ChainIDMoonveil)
	client.NonceErrs = []error{errors.New("dial tcp: connection refused")}
	network := tu.NewMoonveil(client)
	acc := testAccount(t)

	outcome := NewPipeline().Submit(context.Background(), acc, transferIntent(acc), network, 0)

	assert.Equal(t, attempt.KindRetryableFailure, outcome.Kind)
	assert.ErrorIs(t, outcome.Err, ErrAcquireNonceFailed)
	assert.Equal(t, 0, client.Calls("SignTx"))
	assert.Equal(t, 0, client.Calls("SendTransaction"))
}

func TestPipeline_Submit_SignFailureKeepsNonce(t *testing.T) {
	client := tu.NewFakeClient(tu.ChainIDMoonveil)
	client.PendingNonce = 2
	client.SignErr = errors.New("invalid chain id for signer")
	network := tu.NewMoonveil(client)
	acc := testAccount(t)
	p := NewPipeline()

	outcome := p.Submit(context.Background(), acc, transferIntent(acc), network, 0)
	assert.Equal(t, attempt.KindFatalFailure, outcome.Kind)
	assert.ErrorIs(t, outcome.Err, ErrSignFailed)
	assert.Empty(t, client.Sent())

	client.SignErr = nil
	require.True(t, p.Submit(context.Background(), acc, transferIntent(acc), network, 0).IsSuccess())
	assert.Equal(t, []uint64{2}, client.SentNonces())
}

func TestPipeline_Submit_NilArguments(t *testing.T) {
	client := tu.NewFakeClient(tu.ChainIDMoonveil)
	acc := testAccount(t)
	p := NewPipeline()

	outcome := p.Submit(context.Background(), acc, transferIntent(acc), nil, 0)
	assert.ErrorIs(t, outcome.Err, ErrNetworkNil)

	outcome = p.Submit(context.Background(), nil, transferIntent(acc), tu.NewMoonveil(client), 0)
	assert.ErrorIs(t, outcome.Err, ErrAccountNil)
	assert.Equal(t, 0, client.TotalCalls())
}

func TestPipeline_Submit_PinnedGas(t *testing.T) {
	client := tu.NewFakeClient(tu.ChainIDMoonveil)
	network := tu.NewMoonveil(client)
	acc := testAccount(t)

	intent := transferIntent(acc)
	intent.Gas = 30000
	intent.GasPrice = tu.TwoGwei

	require.True(t, NewPipeline().Submit(context.Background(), acc, intent, network, 3).IsSuccess())

	tx := client.Sent()[0]
	assert.Equal(t, uint64(30000), tx.Gas())
	assert.Equal(t, tu.TwoGwei, tx.GasPrice())
	assert.Equal(t, 0, client.Calls("GasPrice"))
	assert.Equal(t, 0, client.Calls("EstimateGas"))
}

func TestPipeline_Submit_EscalatesPricePerAttempt(t *testing.T) {
	client := tu.NewFakeClient(tu.ChainIDMoonveil)
	client.Price = big.NewInt(10_000_000_000)
	network := tu.NewMoonveil(client)
	network.GasMultiplier = 1.0
	acc := testAccount(t)
	p := NewPipeline()

	require.True(t, p.Submit(context.Background(), acc, transferIntent(acc), network, 0).IsSuccess())
	require.True(t, p.Submit(context.Background(), acc, transferIntent(acc), network, 1).IsSuccess())

	sent := client.Sent()
	assert.Equal(t, big.NewInt(10_000_000_000), sent[0].GasPrice())
	assert.Equal(t, big.NewInt(12_000_000_000), sent[1].GasPrice())
}

func TestPipeline_Hooks(t *testing.T) {
	t.Run("before hook rejection stops broadcast", func(t *testing.T) {
		client := tu.NewFakeClient(tu.ChainIDMoonveil)
		network := tu.NewMoonveil(client)
		acc := testAccount(t)

		p := NewPipeline(WithBeforeBroadcast(func(tx *types.Transaction, n *chain.Network, err error) error {
			return errors.New("dry run")
		}))
		outcome := p.Submit(context.Background(), acc, transferIntent(acc), network, 0)

		assert.Equal(t, attempt.KindFatalFailure, outcome.Kind)
		assert.ErrorIs(t, outcome.Err, ErrHookRejected)
		assert.Empty(t, client.Sent())
	})

	t.Run("after hook sees broadcast error", func(t *testing.T) {
		client := tu.NewFakeClient(tu.ChainIDMoonveil)
		sendErr := errors.New("transaction underpriced")
		client.SendErrs = []error{sendErr}
		network := tu.NewMoonveil(client)
		acc := testAccount(t)

		var seen error
		var seenTx *types.Transaction
		p := NewPipeline(WithAfterBroadcast(func(tx *types.Transaction, n *chain.Network, err error) error {
			seenTx = tx
			seen = err
			return nil
		}))
		outcome := p.Submit(context.Background(), acc, transferIntent(acc), network, 0)

		assert.Equal(t, attempt.KindRetryableFailure, outcome.Kind)
		assert.Equal(t, sendErr, seen)
		require.NotNil(t, seenTx)
		assert.Equal(t, client.Sent()[0].Hash(), seenTx.Hash())
	})
}

func TestPipeline_Confirmation(t *testing.T) {
	t.Run("reverted receipt is fatal", func(t *testing.T) {
		client := tu.NewFakeClient(tu.ChainIDMoonveil)
		client.ReceiptFunc = func(hash common.Hash) (*types.Receipt, error) {
			return tu.NewFailedReceipt(hash), nil
		}
		network := tu.NewMoonveil(client)
		acc := testAccount(t)

		p := NewPipeline(WithConfirmation(time.Second, time.Millisecond))
		outcome := p.Submit(context.Background(), acc, transferIntent(acc), network, 0)

		assert.Equal(t, attempt.KindFatalFailure, outcome.Kind)
		assert.ErrorIs(t, outcome.Err, ErrTxReverted)
	})

	t.Run("mined receipt calls hook", func(t *testing.T) {
		client := tu.NewFakeClient(tu.ChainIDMoonveil)
		calls := 0
		client.ReceiptFunc = func(hash common.Hash) (*types.Receipt, error) {
			calls++
			if calls < 3 {
				return nil, ethereum.NotFound
			}
			return tu.NewSuccessReceipt(hash), nil
		}
		network := tu.NewMoonveil(client)
		acc := testAccount(t)

		var mined *types.Receipt
		p := NewPipeline(
			WithConfirmation(time.Second, time.Millisecond),
			WithTxMinedHook(func(tx *types.Transaction, r *types.Receipt) error {
				mined = r
				return nil
			}),
		)
		outcome := p.Submit(context.Background(), acc, transferIntent(acc), network, 0)

		require.True(t, outcome.IsSuccess())
		require.NotNil(t, mined)
		assert.Equal(t, outcome.Hash, mined.TxHash.Hex())
		assert.Equal(t, 3, calls)
	})

	t.Run("missing receipt is still a success", func(t *testing.T) {
		client := tu.NewFakeClient(tu.ChainIDMoonveil)
		client.ReceiptFunc = func(hash common.Hash) (*types.Receipt, error) {
			return nil, ethereum.NotFound
		}
		network := tu.NewMoonveil(client)
		acc := testAccount(t)

		p := NewPipeline(WithConfirmation(20*time.Millisecond, 5*time.Millisecond))
		outcome := p.Submit(context.Background(), acc, transferIntent(acc), network, 0)

		assert.True(t, outcome.IsSuccess())
		assert.NotEmpty(t, outcome.Hash)
	})
}

func TestPipeline_ResetNonces(t *testing.T) {
	client := tu.NewFakeClient(tu.ChainIDMoonveil)
	network := tu.NewMoonveil(client)
	acc := testAccount(t)
	p := NewPipeline()

	require.True(t, p.Submit(context.Background(), acc, transferIntent(acc), network, 0).IsSuccess())
	p.ResetNonces()
	require.True(t, p.Submit(context.Background(), acc, transferIntent(acc), network, 0).IsSuccess())

	assert.Equal(t, 2, client.Calls("TransactionCount"))
	assert.Equal(t, []uint64{0, 0}, client.SentNonces(), "fake pending count does not move")
}
