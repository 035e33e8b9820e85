package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime/debug"
)

// Error codes shared by handlers, middleware and services
const (
	CodeMissingTenant      = "MISSING_TENANT"
	CodeInvalidTenant      = "INVALID_TENANT"
	CodeTenantForbidden    = "TENANT_FORBIDDEN"
	CodeSearchTooShort     = "SEARCH_TOO_SHORT"
	CodeInvalidPagination  = "INVALID_PAGINATION"
	CodeInvalidStatus      = "INVALID_STATUS"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeInvalidDateRange   = "INVALID_DATE_RANGE"
	CodeNoToken            = "NO_TOKEN"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeAuthFailed         = "AUTH_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeDuplicate          = "DUPLICATE_RESOURCE"
	CodeDependentsExist    = "DEPENDENTS_EXIST"
	CodeReferenceNotFound  = "REFERENCE_NOT_FOUND"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	CodeInternal           = "INTERNAL_ERROR"
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Stack      string `json:"-"`

	// Cause is the underlying error, kept for server-side logging only
	Cause error `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// WithCause attaches the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// NewError creates a new application error
func NewError(statusCode int, code string, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Stack:      string(debug.Stack()),
	}
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(code string, message string) *AppError {
	return NewError(http.StatusBadRequest, code, message)
}

// NewUnauthorizedError creates a 401 Unauthorized error
func NewUnauthorizedError(code string, message string) *AppError {
	return NewError(http.StatusUnauthorized, code, message)
}

// NewForbiddenError creates a 403 Forbidden error
func NewForbiddenError(code string, message string) *AppError {
	return NewError(http.StatusForbidden, code, message)
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(code string, message string) *AppError {
	return NewError(http.StatusNotFound, code, message)
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(code string, message string) *AppError {
	return NewError(http.StatusConflict, code, message)
}

// NewTooManyRequestsError creates a 429 Too Many Requests error
func NewTooManyRequestsError(code string, message string) *AppError {
	return NewError(http.StatusTooManyRequests, code, message)
}

// NewInternalServerError creates a 500 Internal Server Error
func NewInternalServerError(code string, message string) *AppError {
	return NewError(http.StatusInternalServerError, code, message)
}

// NewServiceUnavailableError creates a 503 Service Unavailable error
func NewServiceUnavailableError(code string, message string) *AppError {
	return NewError(http.StatusServiceUnavailable, code, message)
}

// HasCode reports whether err is an AppError carrying the given code
func HasCode(err error, code string) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}
