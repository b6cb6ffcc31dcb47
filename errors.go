package moonveil

import "fmt"

// Transaction orchestration errors
var (
	ErrInvalidPrivateKey   = fmt.Errorf("invalid private key")
	ErrAccountNil          = fmt.Errorf("account cannot be nil")
	ErrNetworkNil          = fmt.Errorf("network cannot be nil")
	ErrNetworkNotFound     = fmt.Errorf("network not configured")
	ErrAcquireNonceFailed  = fmt.Errorf("acquire nonce failed")
	ErrSignFailed          = fmt.Errorf("sign transaction failed")
	ErrHookRejected        = fmt.Errorf("broadcast hook rejected transaction")
	ErrTxReverted          = fmt.Errorf("tx reverted")
	ErrBalanceUnavailable  = fmt.Errorf("cannot read balance")
	ErrBalanceUnchanged    = fmt.Errorf("balance has not increased yet")
	ErrBridgeEncodeFailed  = fmt.Errorf("encode bridge payload failed")
	ErrFaucetNotConfigured = fmt.Errorf("faucet url is not configured")
)
