package errors

import (
	"errors"
	"fmt"
)

// Kind is the caller-facing classification of a failed call.
type Kind string

const (
	KindNone           Kind = ""
	KindNetwork        Kind = "network"
	KindAuthentication Kind = "authentication"
	KindNonce          Kind = "nonce"
	KindValidation     Kind = "validation"
	KindUnknownBackend Kind = "unknown_backend"
)

// NetworkError is a transport-level failure: no response was received.
// Ambiguous is set when a mutating request may already have been applied
// server-side; such errors are never retryable without reconciliation.
type NetworkError struct {
	*BaseError
	Ambiguous bool
}

func (e *NetworkError) WithMetadata(key string, value any) DomainError {
	return &NetworkError{BaseError: e.withMeta(key, value), Ambiguous: e.Ambiguous}
}

// NewNetworkError creates a transport error. Ambiguous errors get their own
// code so logs and callers can tell them apart.
func NewNetworkError(code, message string, ambiguous bool, cause error) *NetworkError {
	if ambiguous {
		code = ErrCodeNetworkAmbiguous
		message = fmt.Sprintf("%s; the request may have been applied, check its status before retrying", message)
	}
	return &NetworkError{
		BaseError: NewBaseError(DomainTransport, code, message, !ambiguous, cause, nil),
		Ambiguous: ambiguous,
	}
}

// AuthenticationError covers missing credentials and signatures rejected by
// the backend. It is not retryable without re-authenticating.
type AuthenticationError struct {
	*BaseError
	StatusCode int
}

func (e *AuthenticationError) WithMetadata(key string, value any) DomainError {
	return &AuthenticationError{BaseError: e.withMeta(key, value), StatusCode: e.StatusCode}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(code, message string, status int, cause error) *AuthenticationError {
	return &AuthenticationError{
		BaseError:  NewBaseError(DomainAuth, code, message, false, cause, nil),
		StatusCode: status,
	}
}

// NonceError means the backend saw a reused or decreasing nonce. The call
// can be repeated with a freshly generated, larger nonce.
type NonceError struct {
	*BaseError
	StatusCode int
}

func (e *NonceError) WithMetadata(key string, value any) DomainError {
	return &NonceError{BaseError: e.withMeta(key, value), StatusCode: e.StatusCode}
}

// NewNonceError creates a nonce error.
func NewNonceError(message string, status int) *NonceError {
	return &NonceError{
		BaseError:  NewBaseError(DomainBackend, ErrCodeNonceRejected, message, true, nil, nil),
		StatusCode: status,
	}
}

// ValidationError is a business rejection such as a bad address or an
// insufficient balance. The caller must change its input.
type ValidationError struct {
	*BaseError
	StatusCode int
}

func (e *ValidationError) WithMetadata(key string, value any) DomainError {
	return &ValidationError{BaseError: e.withMeta(key, value), StatusCode: e.StatusCode}
}

// NewValidationError creates a validation error.
func NewValidationError(message string, status int) *ValidationError {
	return &ValidationError{
		BaseError:  NewBaseError(DomainBackend, ErrCodeValidation, message, false, nil, nil),
		StatusCode: status,
	}
}

// UnknownBackendError carries any other backend error verbatim.
type UnknownBackendError struct {
	*BaseError
	StatusCode int
	Body       string
}

func (e *UnknownBackendError) WithMetadata(key string, value any) DomainError {
	return &UnknownBackendError{BaseError: e.withMeta(key, value), StatusCode: e.StatusCode, Body: e.Body}
}

// NewUnknownBackendError creates an unclassified backend error.
func NewUnknownBackendError(code, message string, status int, body string, cause error) *UnknownBackendError {
	return &UnknownBackendError{
		BaseError:  NewBaseError(DomainBackend, code, message, false, cause, nil),
		StatusCode: status,
		Body:       body,
	}
}

// KindOf returns the classification of err, or KindNone for nil and
// unclassified errors.
func KindOf(err error) Kind {
	var (
		netErr   *NetworkError
		authErr  *AuthenticationError
		nonceErr *NonceError
		valErr   *ValidationError
		unkErr   *UnknownBackendError
	)
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &netErr):
		return KindNetwork
	case errors.As(err, &authErr):
		return KindAuthentication
	case errors.As(err, &nonceErr):
		return KindNonce
	case errors.As(err, &valErr):
		return KindValidation
	case errors.As(err, &unkErr):
		return KindUnknownBackend
	default:
		return KindNone
	}
}

// IsAmbiguous reports whether err is a network error whose outcome is unknown.
func IsAmbiguous(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr) && netErr.Ambiguous
}
