package testutil

import (
	"math/big"

	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/chain"
)

// ============================================================
// Test Networks
// ============================================================

// NewNetwork creates a network with 1-100 gwei bounds and a 1.1 multiplier
func NewNetwork(name string, chainID uint64, bridgeID uint32, bridgeGas uint64, client chain.Client) *chain.Network {
	return &chain.Network{
		Name:               name,
		ChainID:            chainID,
		BridgeNetworkID:    bridgeID,
		Symbol:             "ETH",
		ExplorerURL:        "https://explorer.example/" + name,
		MinGasPrice:        new(big.Int).Set(OneGwei),
		MaxGasPrice:        new(big.Int).Set(HundredGwei),
		GasMultiplier:      1.1,
		DefaultTransferGas: chain.DefaultTransferGas,
		DefaultBridgeGas:   bridgeGas,
		Client:             client,
	}
}

// NewMoonveil creates the moonveil test network around client
func NewMoonveil(client chain.Client) *chain.Network {
	return NewNetwork(chain.Moonveil, ChainIDMoonveil, 22, chain.DefaultMoonveilBridgeGas, client)
}

// NewSepolia creates the sepolia test network around client
func NewSepolia(client chain.Client) *chain.Network {
	return NewNetwork(chain.Sepolia, ChainIDSepolia, 0, chain.DefaultSepoliaBridgeGas, client)
}
