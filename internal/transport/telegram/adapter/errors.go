package adapter

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "relaybot/internal/transport"
)

// classifyError maps telebot errors onto the transport error taxonomy.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return &kit.RateLimitError{RetryAfter: time.Duration(flood.RetryAfter) * time.Second, Err: err}
	}
	var floodPtr *tele.FloodError
	if errors.As(err, &floodPtr) && floodPtr != nil {
		return &kit.RateLimitError{RetryAfter: time.Duration(floodPtr.RetryAfter) * time.Second, Err: err}
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusForbidden:
			return fmt.Errorf("%w: %v", kit.ErrForbidden, err)
		case http.StatusBadRequest:
			return fmt.Errorf("%w: %v", kit.ErrBadRequest, err)
		case http.StatusTooManyRequests:
			return &kit.RateLimitError{RetryAfter: time.Second, Err: err}
		}
	}
	return err
}
