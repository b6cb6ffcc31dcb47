package testutil

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ============================================================
// Test Addresses
// ============================================================

var (
	// TestAddr1 is a sender that holds no key
	TestAddr1 = common.HexToAddress("0x1111111111111111111111111111111111111111")
	// TestAddr2 is a plain recipient
	TestAddr2 = common.HexToAddress("0x2222222222222222222222222222222222222222")
	// BridgeContract is the bridge contract address used in tests
	BridgeContract = common.HexToAddress("0x528e26b25a34a4A5d0dbDa1d57D318153d2ED582")
)

// ============================================================
// Test Private Keys
// ============================================================

var (
	// TestPrivateKeyHex is the key of the first account, without 0x prefix
	TestPrivateKeyHex = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	// TestPrivateKey1 is TestPrivateKeyHex parsed
	TestPrivateKey1, _ = crypto.HexToECDSA(TestPrivateKeyHex)
	// TestPrivateKey2Hex is the key of the second account in multi-account runs
	TestPrivateKey2Hex = "fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210"
)

// ============================================================
// Amounts in wei
// ============================================================

var (
	OneEth      = big.NewInt(1_000_000_000_000_000_000)
	OneGwei     = big.NewInt(1_000_000_000)
	TwoGwei     = big.NewInt(2_000_000_000)
	HundredGwei = big.NewInt(100_000_000_000) // default max gas price of the test networks
)

// ============================================================
// Chain IDs
// ============================================================

const (
	ChainIDSepolia  uint64 = 11155111
	ChainIDMoonveil uint64 = 1437 // arbitrary, the real one is read from the node
)
