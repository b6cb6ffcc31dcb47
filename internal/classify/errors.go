package classify

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/attempt"
	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/circuitbreaker"
)

// ReasonNonceTooLow is the Reason of a broadcast rejected for a stale nonce
const ReasonNonceTooLow = "nonce too low"

type rule struct {
	token  string
	reason string
}

// Structural broadcast failures. Retrying cannot fix these.
var fatalBroadcastRules = []rule{
	{"insufficient funds", "insufficient funds"},
	{"intrinsic gas too low", "intrinsic gas too low"},
	{"invalid sender", "invalid sender"},
	{"rlp", "malformed transaction"},
	{"malformed", "malformed transaction"},
	{"execution reverted", "execution reverted"},
	{"exceeds block gas limit", "exceeds block gas limit"},
	{"gas limit reached", "exceeds block gas limit"},
	{"invalid chain id", "invalid chain id"},
}

// Replies meaning the node already holds this exact signed transaction. Its
// nonce is consumed and it will be mined, so it must not be sent again.
var alreadyKnownTokens = []string{
	"already known",
	"known transaction",
}

// Failures plausibly caused by stale nonce or gas state, or by the transport
var retryableBroadcastRules = []rule{
	{"nonce too low", ReasonNonceTooLow},
	{"replacement transaction underpriced", "replacement underpriced"},
	{"transaction underpriced", "transaction underpriced"},
	{"timeout", "timeout"},
	{"timed out", "timeout"},
	{"connection reset", "connection error"},
	{"connection refused", "connection error"},
	{"broken pipe", "connection error"},
	{"eof", "connection error"},
	{"too many requests", "rate limited by rpc"},
	{"429", "rate limited by rpc"},
	{"502", "rpc gateway error"},
	{"503", "rpc gateway error"},
	{"504", "rpc gateway error"},
	{"internal server error", "rpc gateway error"},
}

// AlreadyKnown reports whether a broadcast was refused because the node
// already has the same transaction in its pool
func AlreadyKnown(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	for _, token := range alreadyKnownTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// Broadcast classifies an error returned while handing a signed transaction
// to the network. An already known transaction is a Success without hash; the
// caller knows the hash of what it signed. Unknown errors are retryable:
// gateways commonly surface stale-state rejections with ad hoc wording.
func Broadcast(err error) attempt.Outcome {
	if err == nil || AlreadyKnown(err) {
		return attempt.Success("")
	}
	if errors.Is(err, context.Canceled) {
		return attempt.Fatal("canceled", err)
	}
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return attempt.Retryable("rpc unavailable", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return attempt.Retryable("timeout", err)
	}

	lower := strings.ToLower(err.Error())
	if r, ok := match(lower, fatalBroadcastRules); ok {
		return attempt.Fatal(r.reason, err)
	}
	if r, ok := match(lower, retryableBroadcastRules); ok {
		return attempt.Retryable(r.reason, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return attempt.Retryable("network error", err)
	}
	return attempt.Retryable("unclassified broadcast error", err)
}

// Transport classifies an error raised before any HTTP response arrived.
// Only cancellation by the caller is fatal.
func Transport(err error) attempt.Outcome {
	if err == nil {
		return attempt.Success("")
	}
	if errors.Is(err, context.Canceled) {
		return attempt.Fatal("canceled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return attempt.Retryable("timeout", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return attempt.Retryable("timeout", err)
	}
	if r, ok := match(strings.ToLower(err.Error()), retryableBroadcastRules); ok {
		return attempt.Retryable(r.reason, err)
	}
	return attempt.Retryable("transport error", err)
}

func match(msg string, rules []rule) (rule, bool) {
	for _, r := range rules {
		if strings.Contains(msg, r.token) {
			return r, true
		}
	}
	return rule{}, false
}
