package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want int
	}{
		{"not found", NotFound("doctor", nil), http.StatusNotFound},
		{"validation", Validation("at least one reason is required"), http.StatusBadRequest},
		{"bad request", BadRequest("invalid doctor ID", nil), http.StatusBadRequest},
		{"conflict", Conflict("email already registered", nil), http.StatusConflict},
		{"unauthorized", Unauthorized(nil), http.StatusUnauthorized},
		{"forbidden", Forbidden("permission denied"), http.StatusForbidden},
		{"internal", Internal(fmt.Errorf("boom")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.StatusCode())
		})
	}
}

func TestIsUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("suspend doctor: %w", NotFound("doctor", nil))

	assert.True(t, Is(wrapped, ErrNotFound))
	assert.False(t, Is(wrapped, ErrValidation))

	appErr, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "doctor not found", appErr.Message)
	assert.Equal(t, "not_found", appErr.Code.String())
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Internal(fmt.Errorf("connection reset"))
	assert.Equal(t, "internal server error: connection reset", err.Error())
}
