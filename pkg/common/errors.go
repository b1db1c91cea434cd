package common

import (
	"errors"
	"net/http"
)

// Error codes surfaced to callers. ConcurrencyConflict is the only
// retryable category.
const (
	CodeNotFound            = "not_found"
	CodeInvalidState        = "invalid_state"
	CodeCapacityExceeded    = "capacity_exceeded"
	CodeConcurrencyConflict = "concurrency_conflict"
	CodeBadRequest          = "bad_request"
	CodeInternal            = "internal_error"
)

// AppError is the application error carried across service boundaries
type AppError struct {
	Code    string `json:"code"`
	Status  int    `json:"-"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause
func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(code string, status int, message string, cause ...error) *AppError {
	appErr := &AppError{Code: code, Status: status, Message: message}
	if len(cause) > 0 {
		appErr.Err = cause[0]
	}
	return appErr
}

// NewNotFoundError creates a not-found error
func NewNotFoundError(message string, cause ...error) *AppError {
	return newAppError(CodeNotFound, http.StatusNotFound, message, cause...)
}

// NewInvalidStateError creates a rejected-precondition error
func NewInvalidStateError(message string, cause ...error) *AppError {
	return newAppError(CodeInvalidState, http.StatusConflict, message, cause...)
}

// NewCapacityExceededError creates a capacity violation error
func NewCapacityExceededError(message string, cause ...error) *AppError {
	return newAppError(CodeCapacityExceeded, http.StatusConflict, message, cause...)
}

// NewConflictError creates a retryable concurrency conflict error
func NewConflictError(message string, cause ...error) *AppError {
	return newAppError(CodeConcurrencyConflict, http.StatusConflict, message, cause...)
}

// NewBadRequestError creates a bad-request error
func NewBadRequestError(message string, cause error) *AppError {
	return newAppError(CodeBadRequest, http.StatusBadRequest, message, cause)
}

// NewInternalServerError creates an internal error
func NewInternalServerError(message string, cause ...error) *AppError {
	return newAppError(CodeInternal, http.StatusInternalServerError, message, cause...)
}

// IsCode reports whether err is an AppError with the given code
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRetryable reports whether the caller may retry against a fresh snapshot
func IsRetryable(err error) bool {
	return IsCode(err, CodeConcurrencyConflict)
}
