package moonveil

import (
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/chain"
)

// Hook is called around the broadcast of a signed transaction.
// Before broadcast err is nil; returning an error aborts the attempt without
// using the nonce. After broadcast err is the broadcast error; returning an
// error turns the attempt into a fatal failure so it is never re-sent.
type Hook func(tx *types.Transaction, network *chain.Network, err error) error

// TxMinedHook is called when a receipt for a broadcast transaction is observed,
// whether it succeeded or reverted. Only used when receipt confirmation is enabled.
// Return an error to propagate it to the caller as a fatal failure.
type TxMinedHook func(tx *types.Transaction, receipt *types.Receipt) error
