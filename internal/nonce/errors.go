package nonce

import "fmt"

var (
	// ErrNonceUnavailable is returned when the pending nonce could not be read from the network
	ErrNonceUnavailable = fmt.Errorf("cannot read pending nonce from network")
)
