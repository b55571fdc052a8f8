package errors

import (
	"errors"
	"fmt"
	"time"
)

// DomainError is the base interface for all structured errors in the client
type DomainError interface {
	error

	// Domain returns the domain context (e.g., "transport", "auth", "backend")
	Domain() string

	// Code returns a stable error code
	Code() string

	// Retryable indicates if the operation can be retried
	Retryable() bool

	// Metadata returns additional error context
	Metadata() map[string]any

	// WithMetadata adds metadata to the error
	WithMetadata(key string, value any) DomainError

	// Timestamp returns when the error occurred
	Timestamp() time.Time
}

// BaseError is the foundational implementation of DomainError
type BaseError struct {
	domain    string
	code      string
	message   string
	cause     error
	retryable bool
	metadata  map[string]any
	timestamp time.Time
}

func (e *BaseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.domain, e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.domain, e.code, e.message)
}

func (e *BaseError) Unwrap() error            { return e.cause }
func (e *BaseError) Domain() string           { return e.domain }
func (e *BaseError) Code() string             { return e.code }
func (e *BaseError) Message() string          { return e.message }
func (e *BaseError) Retryable() bool          { return e.retryable }
func (e *BaseError) Metadata() map[string]any { return e.metadata }
func (e *BaseError) Timestamp() time.Time     { return e.timestamp }

// NewBaseError creates a new BaseError with the specified parameters
func NewBaseError(domain, code, message string, retryable bool, cause error, metadata map[string]any) *BaseError {
	if metadata == nil {
		metadata = make(map[string]any)
	}

	return &BaseError{
		domain:    domain,
		code:      code,
		message:   message,
		cause:     cause,
		retryable: retryable,
		metadata:  metadata,
		timestamp: time.Now(),
	}
}

// WithMetadata adds metadata to the error
func (e *BaseError) WithMetadata(key string, value any) DomainError {
	return e.withMeta(key, value)
}

// withMeta returns a copy of e carrying one more metadata entry. The
// original error is never mutated.
func (e *BaseError) withMeta(key string, value any) *BaseError {
	newMeta := make(map[string]any, len(e.metadata)+1)
	for k, v := range e.metadata {
		newMeta[k] = v
	}
	newMeta[key] = value

	return &BaseError{
		domain:    e.domain,
		code:      e.code,
		message:   e.message,
		cause:     e.cause,
		retryable: e.retryable,
		metadata:  newMeta,
		timestamp: e.timestamp,
	}
}

// Standardized Error Codes
const (
	// Transport
	ErrCodeNetwork          = "network_error"
	ErrCodeNetworkAmbiguous = "network_ambiguous"
	ErrCodeTimeout          = "timeout"
	ErrCodeCanceled         = "request_canceled"

	// Authentication
	ErrCodeMissingCredentials = "missing_credentials"
	ErrCodeAuthRejected       = "authentication_rejected"

	// Backend
	ErrCodeNonceRejected  = "nonce_rejected"
	ErrCodeValidation     = "validation_error"
	ErrCodeUnknownBackend = "unknown_backend_error"
	ErrCodeDecode         = "decode_error"
	ErrCodeRateLimited    = "rate_limited"

	// System
	ErrCodeConfiguration   = "config_error"
	ErrCodeCredentialStore = "credential_store_error"
	ErrCodeNonceStore      = "nonce_store_error"
	ErrCodeJournal         = "journal_error"
)

// Domain Constants
const (
	DomainTransport = "transport"
	DomainAuth      = "auth"
	DomainBackend   = "backend"
	DomainSystem    = "system"
)

// NewSystemError creates a standardized system error
func NewSystemError(code, message string, retryable bool, cause error) DomainError {
	return NewBaseError(DomainSystem, code, message, retryable, cause, nil)
}

// Sentinel errors for fast comparison with errors.Is
var (
	ErrMissingCredentials = errors.New("api credentials are not set")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// Helper functions for error checking

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var domainErr DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Retryable()
	}
	return false
}

// GetErrorCode extracts the error code from a DomainError
func GetErrorCode(err error) string {
	var domainErr DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code()
	}
	return "unknown"
}

// WrapWithDomain wraps an existing error with domain context
func WrapWithDomain(err error, domain, code, message string, retryable bool) DomainError {
	return NewBaseError(domain, code, message, retryable, err, nil)
}
