package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_WrapsCause(t *testing.T) {
	cause := errors.New("uuid: invalid length")
	appErr := Unauthorized("missing or invalid X-User-ID", cause)

	assert.Equal(t, http.StatusUnauthorized, appErr.Status)
	assert.Equal(t, CodeUnauthorized, appErr.Code)
	assert.Equal(t, "missing or invalid X-User-ID: uuid: invalid length", appErr.Error())
	assert.ErrorIs(t, appErr, cause)
}

func TestAppError_Constructors(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
		code   string
	}{
		{Validation("bad", nil), http.StatusBadRequest, CodeValidation},
		{Forbidden("no", nil), http.StatusForbidden, CodeForbidden},
		{NotFound("gone", nil), http.StatusNotFound, CodeNotFound},
		{Conflict("taken", nil), http.StatusConflict, CodeConflict},
		{IllegalTransition("late", nil), http.StatusConflict, CodeIllegalTransition},
		{AlreadyTerminal("done", nil), http.StatusConflict, CodeAlreadyTerminal},
		{Internal("boom", nil), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.Status)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.err.Message, tt.err.Error())
			assert.Nil(t, tt.err.Unwrap())
		})
	}
}
