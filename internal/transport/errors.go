package transport

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrForbidden means the bot may not write to the target (blocked, kicked, deactivated).
	ErrForbidden = errors.New("transport: forbidden")
	// ErrBadRequest means the request was rejected as malformed (chat or message not found, ...).
	ErrBadRequest = errors.New("transport: bad request")
)

// RateLimitError is returned when the remote asks the caller to back off.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited (retry after %s)", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// RetryAfter reports the wait carried by a rate-limit error anywhere in err's chain.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}
