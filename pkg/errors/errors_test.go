package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructorsCarryStatus(t *testing.T) {
	cases := []struct {
		err    *AppError
		code   string
		status int
	}{
		{NotFound("chat", nil), CodeNotFound, http.StatusNotFound},
		{Forbidden("not a participant", nil), CodeForbidden, http.StatusForbidden},
		{Validation("content is required"), CodeValidation, http.StatusBadRequest},
		{TransientStore("save failed", stderrors.New("timeout")), CodeTransientStore, http.StatusInternalServerError},
		{TooManyRequests("slow down"), CodeTooManyRequests, http.StatusTooManyRequests},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.code, tc.err.Code)
		assert.Equal(t, tc.status, tc.err.Status)
	}
	assert.Equal(t, "chat not found", NotFound("chat", nil).Message)
}

func TestIsAndCodeOfUnwrap(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := fmt.Errorf("append: %w", TransientStore("failed to save chat", cause))

	assert.True(t, Is(err, CodeTransientStore))
	assert.False(t, Is(err, CodeNotFound))
	assert.Equal(t, CodeTransientStore, CodeOf(err))
	assert.Equal(t, CodeInternal, CodeOf(cause))
	assert.ErrorIs(t, err, cause)
}

func TestIsAppError(t *testing.T) {
	assert.True(t, IsAppError(fmt.Errorf("wrapped: %w", Forbidden("no", nil))))
	assert.False(t, IsAppError(stderrors.New("plain")))
}
