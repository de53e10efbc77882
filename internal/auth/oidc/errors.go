package oidc

import (
	"errors"
	"fmt"
)

// Sentinel errors for token validation.
var (
	// ErrTokenMalformed indicates the token matches no recognized shape.
	// No provider call is made for malformed input.
	ErrTokenMalformed = errors.New("token is malformed")

	// ErrNoKeyID indicates a structured token without a key id header.
	ErrNoKeyID = errors.New("token has no key id")

	// ErrUnknownKeyID indicates the key id is absent from the current key
	// set. No fallback refresh is attempted.
	ErrUnknownKeyID = errors.New("unknown key id")

	// ErrUnsupportedAlgorithm indicates a disallowed signing algorithm.
	ErrUnsupportedAlgorithm = errors.New("signing algorithm is not allowed")

	// ErrInvalidSignature indicates signature verification failed.
	ErrInvalidSignature = errors.New("token signature is invalid")

	// ErrInvalidIssuer indicates the issuer claim does not match.
	ErrInvalidIssuer = errors.New("token issuer is invalid")

	// ErrInvalidAudience indicates neither the audience claim nor the
	// client-id fallback matched the configured audience.
	ErrInvalidAudience = errors.New("token audience is invalid")

	// ErrMissingSubject indicates no subject claim was present.
	ErrMissingSubject = errors.New("missing subject")

	// ErrTokenRejected indicates the provider refused the opaque token.
	ErrTokenRejected = errors.New("token rejected by provider")

	// ErrRefreshDeadline indicates the overall key-set refresh deadline
	// was exceeded. Distinct from FetchError for operability.
	ErrRefreshDeadline = errors.New("key set refresh deadline exceeded")
)

// FetchError represents a failed provider fetch (discovery, key set, or
// userinfo transport failure). The cache is left unchanged.
type FetchError struct {
	Endpoint string
	Cause    error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("oidc fetch error (%s): %v", e.Endpoint, e.Cause)
	}
	return fmt.Sprintf("oidc fetch error (%s)", e.Endpoint)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *FetchError) Is(target error) bool {
	_, ok := target.(*FetchError)
	return ok || errors.Is(e.Cause, target)
}

// NewFetchError creates a new FetchError.
func NewFetchError(endpoint string, cause error) *FetchError {
	return &FetchError{Endpoint: endpoint, Cause: cause}
}

// ConfigError represents provider metadata missing an expected field.
// Unlike a FetchError this is non-transient; retrying will not help until
// the provider's configuration changes.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("oidc configuration error (%s): %s", e.Field, e.Message)
}

// Is checks if the error matches the target.
func (e *ConfigError) Is(target error) bool {
	_, ok := target.(*ConfigError)
	return ok
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// ValidationError represents a terminal token validation failure. No
// retry is performed.
type ValidationError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("oidc validation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("oidc validation error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok || errors.Is(e.Cause, target)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string, cause error) *ValidationError {
	return &ValidationError{Message: message, Cause: cause}
}
