package coins

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
)

// ErrUnauthorized is returned when the coins backend rejects the service
// credentials. Handlers map it to a re-authentication prompt.
var ErrUnauthorized = errors.New("coins backend rejected credentials")

// APIError is a non-2xx response from the coins backend. Message carries
// the backend-provided text verbatim so operators see the original reason.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("coins api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("coins api error (status %d)", e.StatusCode)
}

// TransportError wraps a network-level failure talking to the backend
type TransportError struct {
	Err     error
	Timeout bool
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("coins backend timeout: %v", e.Err)
	}
	return fmt.Sprintf("coins backend unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func classifyRequestError(ctx context.Context, err error) error {
	if isTimeoutError(ctx, err) {
		return &TransportError{Err: err, Timeout: true}
	}
	return &TransportError{Err: err}
}

func isTimeoutError(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// retryable reports whether a read may be re-attempted: transport failures
// and 5xx responses only. 4xx answers are authoritative.
func retryable(err error) bool {
	if err == nil {
		return false
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}

	return false
}
