// Package testutil provides testing utilities for the moonveil engine.
// This package is intended for use in tests only and should not be imported in production code.
//
// # Test Fixtures
//
// Common test values are provided:
//   - TestAddr1, TestAddr2, BridgeContract: addresses without keys
//   - TestPrivateKeyHex, TestPrivateKey2Hex: keys of the two test accounts
//   - OneEth, OneGwei, TwoGwei, HundredGwei: Common value constants
//   - ChainIDSepolia, ChainIDMoonveil: Chain IDs of the two networks
//
// # Builders
//
//   - NewLegacyTx: Create an unsigned legacy transaction
//   - NewSuccessReceipt, NewFailedReceipt: Create test receipts
//   - NewMoonveil, NewSepolia: Networks with realistic bounds around a given client
//
// # Fakes
//
//   - FakeClient: a scriptable chain.Client that records every broadcast
//   - FakePoster: a scripted faucet HTTP transport that records every request
//   - Sleeper: records requested sleeps without waiting
//
// # Example Usage
//
//	func TestTransfer(t *testing.T) {
//	    client := testutil.NewFakeClient(testutil.ChainIDMoonveil)
//	    client.Balance = testutil.OneEth
//	    network := testutil.NewMoonveil(client)
//	    // ...
//	    assert.Len(t, client.Sent(), 1)
//	}
package testutil
