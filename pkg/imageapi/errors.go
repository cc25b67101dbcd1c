package imageapi

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTimeout means the per-attempt deadline expired before the image arrived.
	ErrTimeout = errors.New("image request timed out")
	// ErrNetwork covers transport failures: DNS, connection resets, truncated bodies.
	ErrNetwork = errors.New("image request network failure")
	// ErrMalformedResponse means a 2xx response that does not carry an image.
	ErrMalformedResponse = errors.New("malformed image response")
)

// StatusError is a non-2xx reply from the image service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("image API responded with status %d", e.Code)
	}
	return fmt.Sprintf("image API responded with status %d: %s", e.Code, e.Body)
}

// Class names the failure kind of err for logs and history records.
func Class(err error) string {
	var statusErr *StatusError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.As(err, &statusErr):
		return fmt.Sprintf("status_%d", statusErr.Code)
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unknown"
	}
}

// IsRetryable reports whether a failed fetch may be attempted again.
// Every failure from Fetch is transient except cancellation of the caller's context.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *StatusError
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrMalformedResponse) ||
		errors.As(err, &statusErr)
}
