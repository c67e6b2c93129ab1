package verification

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound    = errors.New("verification session not found")
	ErrSessionClosed      = errors.New("verification session is closed")
	ErrSubmissionInFlight = errors.New("another submission is already in flight")
	ErrNotReviewing       = errors.New("session is not reviewing a transaction")
	ErrNavigationBlocked  = errors.New("cannot navigate to that position")
)

// ValidationError is a form-level failure raised before any network call
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
