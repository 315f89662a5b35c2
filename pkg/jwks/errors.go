package jwks

import (
	"errors"
	"fmt"
)

var (
	ErrNoSigningKeys = errors.New("the JWKS endpoint did not contain any signing keys")
)

// ConfigurationError is returned by NewClient when the configuration is unusable.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid jwks client configuration: %s", e.Message)
	}

	return fmt.Sprintf("invalid jwks client configuration: %s: %s", e.Field, e.Message)
}

// SigningKeyNotFoundError is returned when no strategy produced a key for the requested kid.
type SigningKeyNotFoundError struct {
	Kid     string
	Message string
}

func newSigningKeyNotFoundError(kid string) *SigningKeyNotFoundError {
	return &SigningKeyNotFoundError{
		Kid:     kid,
		Message: fmt.Sprintf("Unable to find a signing key that matches '%s'", kid),
	}
}

func (e *SigningKeyNotFoundError) Error() string {
	return e.Message
}

// RateLimitError is returned when a fetch was suppressed by the limiter.
type RateLimitError struct {
	Limit int
}

func (e *RateLimitError) Error() string {
	return "too many requests to the JWKS endpoint"
}

// FetchError wraps network, HTTP and decoding failures of a JWKS fetch.
type FetchError struct {
	URI        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("jwks fetch from %s failed with status %d: %v", e.URI, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("jwks fetch from %s failed: %v", e.URI, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
