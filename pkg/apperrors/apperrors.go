package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to the request layer
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeParentNotVisible    = "PARENT_NOT_VISIBLE"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	CodeNotFound            = "NOT_FOUND"
	CodeForbidden           = "FORBIDDEN"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeConflict            = "CONFLICT"
	CodeCacheUnavailable    = "CACHE_UNAVAILABLE"
	CodeInternal            = "INTERNAL_ERROR"
)

// AppError carries a machine-readable code alongside the HTTP status
type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: err}
}

// Validation is returned immediately and never retried
func Validation(message string, err error) *AppError {
	return &AppError{Code: CodeValidation, Message: message, Status: http.StatusBadRequest, Err: err}
}

// ParentNotVisible rejects a reply whose parent cannot host it
func ParentNotVisible(message string) *AppError {
	return &AppError{Code: CodeParentNotVisible, Message: message, Status: http.StatusUnprocessableEntity}
}

// ConcurrencyConflict signals a lost optimistic-lock race; callers retry
func ConcurrencyConflict(message string) *AppError {
	return &AppError{Code: CodeConcurrencyConflict, Message: message, Status: http.StatusConflict}
}

// ServiceUnavailable is surfaced once the internal retry budget is spent
func ServiceUnavailable(message string, err error) *AppError {
	return &AppError{Code: CodeServiceUnavailable, Message: message, Status: http.StatusServiceUnavailable, Err: err}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s not found", resource), Status: http.StatusNotFound, Err: err}
}

func Forbidden(message string) *AppError {
	return &AppError{Code: CodeForbidden, Message: message, Status: http.StatusForbidden}
}

func Unauthorized(message string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: message, Status: http.StatusUnauthorized}
}

func Conflict(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message, Status: http.StatusConflict}
}

func CacheUnavailable(err error) *AppError {
	return &AppError{Code: CodeCacheUnavailable, Message: "cache unavailable", Status: http.StatusServiceUnavailable, Err: err}
}

func Internal(message string, err error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Status: http.StatusInternalServerError, Err: err}
}

// Is reports whether err is an AppError carrying the given code
func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
