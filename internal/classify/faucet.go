// Package classify turns remote responses into attempt outcomes. All string
// matching against remote prose lives here so call sites only ever see the
// four outcome kinds.
package classify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Usernameusernamenotavailbleisnot/m00nv3il/internal/attempt"
)

// TxHashMarker precedes the transaction hash in a faucet success message
const TxHashMarker = "Txhash:"

// RateLimitPhrases mark a faucet message as a rate limit. Matching is
// case-sensitive substring matching against operator-written prose, so it
// breaks silently if the faucet rewords its messages.
var RateLimitPhrases = []string{
	"exceeded the rate limit",
	"wait",
	"hour",
}

// RetryableStatuses are HTTP statuses worth another attempt
var RetryableStatuses = map[int]bool{
	408: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

type faucetBody struct {
	Msg string `json:"msg"`
}

// Faucet classifies one faucet HTTP response. Rules apply in order:
//
//  1. 429 is RateLimited whatever the body says
//  2. a msg containing a rate-limit phrase is RateLimited
//  3. 408 and 5xx in RetryableStatuses are RetryableFailure
//  4. a body that is not a JSON object or string is FatalFailure
//  5. 2xx with a msg containing TxHashMarker is Success with the hash
//  6. any other 2xx is Success without hash
//  7. everything else is FatalFailure
func Faucet(status int, body []byte) attempt.Outcome {
	if status == 429 {
		return attempt.RateLimited("http 429")
	}

	msg, parseErr := faucetMessage(body)
	if parseErr == nil {
		for _, phrase := range RateLimitPhrases {
			if strings.Contains(msg, phrase) {
				return attempt.RateLimited(msg)
			}
		}
	}

	if RetryableStatuses[status] {
		return attempt.Retryable(fmt.Sprintf("http %d", status), nil)
	}
	if parseErr != nil {
		return attempt.Fatal("unparseable faucet response", parseErr)
	}

	if status >= 200 && status < 300 {
		if strings.Contains(msg, TxHashMarker) {
			return attempt.Success(extractHash(msg))
		}
		return attempt.Success("")
	}
	return attempt.Fatal(fmt.Sprintf("http %d: %s", status, msg), nil)
}

// faucetMessage reads the msg field of a JSON object body, or the body itself
// when it is a JSON string
func faucetMessage(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("empty body")
	}
	switch trimmed[0] {
	case '{':
		var parsed faucetBody
		if err := json.Unmarshal(trimmed, &parsed); err != nil {
			return "", err
		}
		return parsed.Msg, nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	default:
		return "", fmt.Errorf("body is not a JSON object: %.64q", trimmed)
	}
}

// extractHash returns the trimmed text between the first marker and the next one
func extractHash(msg string) string {
	parts := strings.Split(msg, TxHashMarker)
	return strings.TrimSpace(parts[1])
}
