package testutil

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ============================================================
// Transaction Builders
// ============================================================

// NewLegacyTx creates an unsigned legacy transaction for testing
func NewLegacyTx(nonce uint64, to common.Address, value *big.Int, gasLimit uint64, gasPrice *big.Int) *types.Transaction {
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
	})
}

// ============================================================
// Receipt Builders
// ============================================================

// NewReceipt creates a test receipt for a transaction hash with a specific status
func NewReceipt(hash common.Hash, status uint64) *types.Receipt {
	return &types.Receipt{
		Status:      status,
		TxHash:      hash,
		BlockNumber: big.NewInt(12345678),
		BlockHash:   common.HexToHash("0xabcdef1234567890abcdef1234567890abcdef1234567890abcdef1234567890"),
		GasUsed:     21000,
	}
}

// NewSuccessReceipt creates a successful receipt
func NewSuccessReceipt(hash common.Hash) *types.Receipt {
	return NewReceipt(hash, types.ReceiptStatusSuccessful)
}

// NewFailedReceipt creates a failed (reverted) receipt
func NewFailedReceipt(hash common.Hash) *types.Receipt {
	return NewReceipt(hash, types.ReceiptStatusFailed)
}
