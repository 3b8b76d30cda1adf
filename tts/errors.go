package tts

import (
	"errors"
	"fmt"
)

// defaultRateLimitMessage is shown for HTTP 429 responses when the API
// does not supply a message of its own.
const defaultRateLimitMessage = "API rate limit exceeded, please try again later"

// AuthenticationError reports a missing or rejected API credential. Not
// retriable; the user has to fix their configuration.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.Reason
}

// RateLimitError reports an HTTP 429 from the API. Retriable after
// backing off.
type RateLimitError struct {
	Message string
}

// NewRateLimitError builds a RateLimitError, substituting the default
// message when none is supplied.
func NewRateLimitError(message string) *RateLimitError {
	if message == "" {
		message = defaultRateLimitMessage
	}
	return &RateLimitError{Message: message}
}

func (e *RateLimitError) Error() string {
	if e.Message == "" {
		return defaultRateLimitMessage
	}
	return e.Message
}

// VoiceNotFoundError reports that the requested voice id does not exist
// remotely (HTTP 404 on synthesis).
type VoiceNotFoundError struct {
	VoiceID string
}

func (e *VoiceNotFoundError) Error() string {
	return fmt.Sprintf("voice with ID %q not found", e.VoiceID)
}

// NetworkError wraps a connection-level failure (DNS, timeout, reset).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError carries the status code and raw body of any other non-2xx
// response, for diagnostics.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Body)
}

// FileSystemError reports a local I/O problem around the output file:
// missing parent directory, wrong entry type, or a failed write.
type FileSystemError struct {
	Path   string
	Reason string
	Err    error
}

func (e *FileSystemError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("filesystem error at %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *FileSystemError) Unwrap() error { return e.Err }

// ValidationError reports an empty required request field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return e.Field + " cannot be empty"
}

// Retryable reports whether retrying the failed operation without
// changing its input could plausibly succeed. Unknown errors are treated
// as non-retriable.
func Retryable(err error) bool {
	var (
		rateLimitErr *RateLimitError
		networkErr   *NetworkError
		apiErr       *APIError
	)
	switch {
	case errors.As(err, &rateLimitErr), errors.As(err, &networkErr):
		return true
	case errors.As(err, &apiErr):
		return apiErr.StatusCode >= 500
	}
	return false
}
