package gpadmin

import (
	"errors"
	"fmt"
)

// =====================================
// Error Handling
// =====================================

// Error is the typed error returned by resources and store adapters
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Code    string
}

// Error implements the error interface
func (e Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an Error of the same type
func (e Error) Is(target error) bool {
	if t, ok := target.(Error); ok {
		return e.Type == t.Type
	}
	return false
}

// NewError creates a new Error
func NewError(errorType ErrorType, message string) Error {
	return Error{
		Type:    errorType,
		Message: message,
	}
}

// NewErrorWithCause creates a new Error wrapping cause
func NewErrorWithCause(errorType ErrorType, message string, cause error) Error {
	return Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewErrorWithCode creates a new Error carrying a driver specific code
func NewErrorWithCode(errorType ErrorType, message string, code string) Error {
	return Error{
		Type:    errorType,
		Message: message,
		Code:    code,
	}
}

// IsErrorType reports whether err, or anything it wraps, is an Error of errorType
func IsErrorType(err error, errorType ErrorType) bool {
	var e Error
	if errors.As(err, &e) {
		return e.Type == errorType
	}
	return false
}

// IsNotFound checks if an error is a "not found" error
func IsNotFound(err error) bool { return IsErrorType(err, ErrorTypeNotFound) }

// IsDuplicate checks if an error is a "duplicate" error
func IsDuplicate(err error) bool { return IsErrorType(err, ErrorTypeDuplicate) }

// IsValidation checks if an error is a "validation" error
func IsValidation(err error) bool { return IsErrorType(err, ErrorTypeValidation) }

// IsConnection checks if an error is a "connection" error
func IsConnection(err error) bool { return IsErrorType(err, ErrorTypeConnection) }

// IsTransaction checks if an error is a "transaction" error
func IsTransaction(err error) bool { return IsErrorType(err, ErrorTypeTransaction) }

// IsConfiguration checks if an error is a resource definition error
func IsConfiguration(err error) bool { return IsErrorType(err, ErrorTypeConfiguration) }

// IsPermission checks if an error is a "permission" error
func IsPermission(err error) bool { return IsErrorType(err, ErrorTypePermission) }
