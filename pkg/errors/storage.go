package errors

import (
	"context"
	stderrors "errors"
	"net"
	"strings"
	"syscall"

	"conversation-analytics/backend/pkg/resilience"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL SQLSTATE codes the mapper distinguishes
const (
	pgUniqueViolation       = "23505"
	pgForeignKeyViolation   = "23503"
	pgInvalidText           = "22P02"
	pgNumericOutOfRange     = "22003"
	pgTooManyConnections    = "53300"
	pgAdminShutdown         = "57P01"
	pgCrashShutdown         = "57P02"
	pgCannotConnectNow      = "57P03"
	pgConnectionClassPrefix = "08"
)

// FromStorage maps an error returned by the storage layer onto the application taxonomy.
// It is the only place driver-specific error codes are inspected.
func FromStorage(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	if stderrors.Is(err, pgx.ErrNoRows) || stderrors.Is(err, gorm.ErrRecordNotFound) {
		return NewNotFoundError(CodeNotFound, "Resource not found").WithCause(err)
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation:
			return NewConflictError(CodeDuplicate, "A resource with the same unique value already exists").
				WithDetails(map[string]any{"constraint": pgErr.ConstraintName}).
				WithCause(err)
		case pgErr.Code == pgForeignKeyViolation:
			return NewBadRequestError(CodeReferenceNotFound, "Referenced resource not found").
				WithDetails(map[string]any{"constraint": pgErr.ConstraintName}).
				WithCause(err)
		case pgErr.Code == pgInvalidText, pgErr.Code == pgNumericOutOfRange:
			return NewBadRequestError(CodeInvalidInput, "Invalid input value").WithCause(err)
		case pgErr.Code == pgTooManyConnections,
			pgErr.Code == pgAdminShutdown,
			pgErr.Code == pgCrashShutdown,
			pgErr.Code == pgCannotConnectNow,
			strings.HasPrefix(pgErr.Code, pgConnectionClassPrefix):
			return unavailable(err)
		}
		return internal(err)
	}

	if isConnectivity(err) {
		return unavailable(err)
	}

	return internal(err)
}

func isConnectivity(err error) bool {
	var connectErr *pgconn.ConnectError
	if stderrors.As(err, &connectErr) {
		return true
	}
	if stderrors.Is(err, context.DeadlineExceeded) ||
		stderrors.Is(err, syscall.ECONNREFUSED) ||
		stderrors.Is(err, resilience.ErrCircuitOpen) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr)
}

func unavailable(err error) *AppError {
	return NewServiceUnavailableError(CodeServiceUnavailable, "The data store is temporarily unavailable").WithCause(err)
}

func internal(err error) *AppError {
	return NewInternalServerError(CodeInternal, "An unexpected error occurred").WithCause(err)
}
