package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingToken means no capability token was presented.
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken covers bad signatures, wrong secrets and malformed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken means the signature verified but expiresAt has passed.
	ErrExpiredToken = errors.New("expired token")
	// ErrMissingUpstreamConfig means the site has no provider credential on record.
	ErrMissingUpstreamConfig = errors.New("missing upstream config")
	ErrNotFound              = errors.New("not found")
	ErrMalformedRequest      = errors.New("malformed request")
)

// UpstreamError reports a failed call to an external provider. StatusCode is
// zero when no response was received at all.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s API error: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s API error: status %d", e.Provider, e.StatusCode)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is lets an upstream 404 satisfy errors.Is(err, ErrNotFound).
func (e *UpstreamError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Malformed wraps ErrMalformedRequest with a description of the bad input.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedRequest, fmt.Sprintf(format, args...))
}
