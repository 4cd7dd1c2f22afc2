package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Conflict("username taken"))

	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.NotErrorIs(t, err, ErrInvalidArgument)
}

func TestError_StatusCode(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{InvalidArgument("blank"), http.StatusBadRequest},
		{Conflict("dup"), http.StatusConflict},
		{Unauthorized("nope"), http.StatusUnauthorized},
		{&Error{Message: "?"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.StatusCode(), tt.err.Message)
	}
}

func TestError_AsKeepsMessage(t *testing.T) {
	err := fmt.Errorf("op: %w", Unauthorized("Invalid token"))

	var target *Error
	require.True(t, errors.As(err, &target))
	assert.Equal(t, "Invalid token", target.Message)
	assert.Equal(t, "unauthorized", target.Kind.String())
}
