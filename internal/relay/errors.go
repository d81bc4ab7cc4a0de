package relay

import (
	"errors"
	"fmt"
)

// ErrOwnershipConflict is returned by ClaimOwner when another user owns the bot.
var ErrOwnershipConflict = errors.New("owner already set")

// ValidationError rejects wizard input; the wizard step is kept so the user can retry.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
