package errors

import (
	stderrors "errors"
	"net/http"
)

// BadRequestWithDetails creates a 400 Bad Request error with details
func BadRequestWithDetails(code string, message string, details any) *AppError {
	appErr := NewBadRequestError(code, message)
	appErr.Details = details
	return appErr
}

// ConflictWithDetails creates a 409 Conflict error with details
func ConflictWithDetails(code string, message string, details any) *AppError {
	appErr := NewConflictError(code, message)
	appErr.Details = details
	return appErr
}

// FromError converts a standard error to an AppError
// If the error is already an AppError, it is returned as-is
// Otherwise, it is wrapped as an internal server error with a generic message
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	return NewInternalServerError(CodeInternal, "An unexpected error occurred").WithCause(err)
}

// GetStatusCode extracts the HTTP status code from an AppError, returns 500 if not an AppError
func GetStatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

