package firebase

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestAuthErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"plain code", &googleapi.Error{Code: 400, Message: "INVALID_PASSWORD"}, CodeInvalidPassword},
		{"code with detail", &googleapi.Error{Code: 400, Message: "WEAK_PASSWORD : Password should be at least 6 characters"}, CodeWeakPassword},
		{"wrapped auth error", fmt.Errorf("login: %w", &AuthError{Code: CodeUserDisabled}), CodeUserDisabled},
		{"rate limited without code", &googleapi.Error{Code: http.StatusTooManyRequests, Message: "Quota exceeded"}, CodeTooManyAttempts},
		{"free text message", &googleapi.Error{Code: 400, Message: "API key not valid. Please pass a valid API key."}, ""},
		{"unrelated", errors.New("dial tcp: timeout"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AuthErrorCode(tt.err))
		})
	}
}

func TestAuthErrorMessage(t *testing.T) {
	msg, status := AuthErrorMessage(CodeInvalidCredentials)
	assert.Equal(t, "Invalid email or password. Please try again.", msg)
	assert.Equal(t, http.StatusUnauthorized, status)

	msg, status = AuthErrorMessage(CodeEmailExists)
	assert.Contains(t, msg, "already exists")
	assert.Equal(t, http.StatusConflict, status)

	_, status = AuthErrorMessage("SOMETHING_NEW")
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestAuthErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &AuthError{Code: CodeEmailNotFound, Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "No account found")
}
