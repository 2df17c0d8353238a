package shared

import (
	"errors"
	"net/http"
)

// ErrorKind classifies domain errors so callers can tell a hard failure from
// an idempotent retry that found the work already done.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"      // bad input, raised before any mutation
	KindInvariant      ErrorKind = "invariant"       // operation would break an aggregate invariant
	KindAlreadyHandled ErrorKind = "already_handled" // target already in the requested terminal state
	KindNotFound       ErrorKind = "not_found"
	KindForbidden      ErrorKind = "forbidden"
	KindConflict       ErrorKind = "conflict" // concurrent modification detected by a version/status check
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code.
// This lets callers compare against the sentinel values below with errors.Is.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// NewDomainError creates a new domain error of the validation kind
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindValidation}
}

// NewValidationError creates a validation error
func NewValidationError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindValidation}
}

// NewInvariantError creates an invariant-violation error
func NewInvariantError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindInvariant}
}

// NewAlreadyHandledError creates an already-handled error
func NewAlreadyHandledError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindAlreadyHandled}
}

// NewNotFoundError creates a not-found error
func NewNotFoundError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindNotFound}
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindForbidden}
}

// NewConflictError creates a concurrency conflict error
func NewConflictError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindConflict}
}

// Common domain errors
var (
	ErrNotFound            = NewNotFoundError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewConflictError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewValidationError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewConflictError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrForbidden           = NewForbiddenError("FORBIDDEN", "Access to this resource is forbidden")
	ErrInsufficientBalance = NewInvariantError("INSUFFICIENT_BALANCE", "Insufficient balance available")
)

// KindOf returns the kind of a domain error, or "" for any other error
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsInvariant reports whether err is an invariant-violation error
func IsInvariant(err error) bool { return KindOf(err) == KindInvariant }

// IsAlreadyHandled reports whether err signals that the work was already done
func IsAlreadyHandled(err error) bool { return KindOf(err) == KindAlreadyHandled }

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsForbidden reports whether err is a forbidden error
func IsForbidden(err error) bool { return KindOf(err) == KindForbidden }

// IsConflict reports whether err is a concurrency conflict
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// HTTPStatus maps an error to the status code the HTTP boundary should use
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindInvariant:
		return http.StatusUnprocessableEntity
	case KindAlreadyHandled, KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
