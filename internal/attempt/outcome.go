// Package attempt defines the outcome of a single fallible remote operation
// (a faucet request or a sign-and-broadcast attempt).
package attempt

import "fmt"

// Kind is the classification of an attempt
type Kind int

const (
	KindSuccess          Kind = iota // Operation completed, Hash may be set
	KindRateLimited                  // Remote asked us to come back later, terminal
	KindRetryableFailure             // Plausibly caused by stale or transient state
	KindFatalFailure                 // Structural failure, retrying cannot help
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRateLimited:
		return "rate_limited"
	case KindRetryableFailure:
		return "retryable_failure"
	case KindFatalFailure:
		return "fatal_failure"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of one attempt.
// Hash is only meaningful for KindSuccess, Reason and Err only for failures.
type Outcome struct {
	Kind   Kind
	Hash   string
	Reason string
	Err    error
}

// Success returns a successful outcome carrying an optional hash
func Success(hash string) Outcome {
	return Outcome{Kind: KindSuccess, Hash: hash}
}

// RateLimited returns a rate-limited outcome
func RateLimited(reason string) Outcome {
	return Outcome{Kind: KindRateLimited, Reason: reason}
}

// Retryable returns a retryable failure
func Retryable(reason string, err error) Outcome {
	return Outcome{Kind: KindRetryableFailure, Reason: reason, Err: err}
}

// Fatal returns a fatal failure
func Fatal(reason string, err error) Outcome {
	return Outcome{Kind: KindFatalFailure, Reason: reason, Err: err}
}

// IsSuccess reports whether the outcome is a plain success
func (o Outcome) IsSuccess() bool { return o.Kind == KindSuccess }

// IsTerminal reports whether a retry loop must stop on this outcome
func (o Outcome) IsTerminal() bool { return o.Kind != KindRetryableFailure }

// Succeeded reports whether the outcome counts as a success for the caller,
// which includes RateLimited.
func (o Outcome) Succeeded() bool {
	return o.Kind == KindSuccess || o.Kind == KindRateLimited
}

func (o Outcome) String() string {
	switch o.Kind {
	case KindSuccess:
		if o.Hash == "" {
			return "success"
		}
		return fmt.Sprintf("success(%s)", o.Hash)
	case KindRateLimited:
		return fmt.Sprintf("rate_limited(%s)", o.Reason)
	default:
		if o.Err != nil {
			return fmt.Sprintf("%s(%s: %v)", o.Kind, o.Reason, o.Err)
		}
		return fmt.Sprintf("%s(%s)", o.Kind, o.Reason)
	}
}
