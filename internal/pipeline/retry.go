package pipeline

import (
	"errors"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/dgallion1/tocindex/internal/pathstore"
)

// MaxPublishAttempts bounds how often one listing is pushed to the path store.
const MaxPublishAttempts = 4

// backoffBase is the first publish retry delay. Tests shorten it.
var backoffBase = 500 * time.Millisecond

// IsRetryable reports whether a publish error is transient.
func IsRetryable(err error) bool {
	var retryErr *pathstore.RetryableError
	return errors.As(err, &retryErr)
}

// PublishBackoff returns the delay before publish attempt n+1. Delays double
// from backoffBase up to 20x it, with up to 50% jitter. A throttled (429)
// response starts one step further along, since a listing publish is a burst
// of node writes.
func PublishBackoff(attempt int, err error) time.Duration {
	var retryErr *pathstore.RetryableError
	if errors.As(err, &retryErr) && retryErr.StatusCode == http.StatusTooManyRequests {
		attempt++
	}
	limit := 20 * backoffBase
	d := limit
	if attempt < 16 {
		d = min(backoffBase<<uint(attempt), limit)
	}
	return d + time.Duration(rand.Int64N(int64(d)/2+1))
}
