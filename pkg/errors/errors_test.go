package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestHasCode_SeesWrappedErrors(t *testing.T) {
	appErr := NewNotFoundError(CodeNotFound, "Session not found")
	wrapped := fmt.Errorf("update status: %w", appErr)

	assert.True(t, HasCode(appErr, CodeNotFound))
	assert.True(t, HasCode(wrapped, CodeNotFound))
	assert.False(t, HasCode(wrapped, CodeInvalidStatus))
	assert.False(t, HasCode(fmt.Errorf("plain"), CodeNotFound))
	assert.Equal(t, http.StatusNotFound, GetStatusCode(wrapped))
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(fmt.Errorf("plain")))
}

func TestFromStorage(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}, http.StatusConflict, CodeDuplicate},
		{"foreign key", &pgconn.PgError{Code: "23503"}, http.StatusBadRequest, CodeReferenceNotFound},
		{"connection class", &pgconn.PgError{Code: "08006"}, http.StatusServiceUnavailable, CodeServiceUnavailable},
		{"deadline", fmt.Errorf("acquire: %w", context.DeadlineExceeded), http.StatusServiceUnavailable, CodeServiceUnavailable},
		{"unmapped", fmt.Errorf("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromStorage(tt.err)
			assert.Equal(t, tt.status, got.StatusCode)
			assert.Equal(t, tt.code, got.Code)
		})
	}
	assert.Nil(t, FromStorage(nil))
}
