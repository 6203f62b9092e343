package firebase

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// Códigos de erro do Identity Toolkit (e equivalentes do Admin SDK).
const (
	CodeInvalidPassword    = "INVALID_PASSWORD"
	CodeInvalidCredentials = "INVALID_LOGIN_CREDENTIALS"
	CodeEmailNotFound      = "EMAIL_NOT_FOUND"
	CodeEmailExists        = "EMAIL_EXISTS"
	CodeWeakPassword       = "WEAK_PASSWORD"
	CodeTooManyAttempts    = "TOO_MANY_ATTEMPTS_TRY_LATER"
	CodeUserDisabled       = "USER_DISABLED"
	CodeInvalidEmail       = "INVALID_EMAIL"
	CodeMissingPassword    = "MISSING_PASSWORD"
	CodeOperationDisabled  = "OPERATION_NOT_ALLOWED"
)

// AuthError carrega o código do provedor de identidade.
type AuthError struct {
	Code string
	Err  error
}

func (e *AuthError) Error() string {
	msg, _ := AuthErrorMessage(e.Code)
	if e.Err != nil {
		return e.Code + ": " + msg + " (" + e.Err.Error() + ")"
	}
	return e.Code + ": " + msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// AuthErrorCode extrai o código de um erro do Identity Toolkit ou do Admin SDK.
// Devolve "" para erros que não vieram do provedor.
func AuthErrorCode(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Code
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		// O Identity Toolkit às vezes anexa um detalhe: "WEAK_PASSWORD : Password should be..."
		code, _, _ := strings.Cut(apiErr.Message, " ")
		if isErrorCode(code) {
			return code
		}
		if apiErr.Code == http.StatusTooManyRequests {
			return CodeTooManyAttempts
		}
	}
	return ""
}

func isErrorCode(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && r != '_' {
			return false
		}
	}
	return true
}

// AuthErrorMessage traduz o código na mensagem mostrada ao usuário e no status HTTP.
func AuthErrorMessage(code string) (string, int) {
	switch code {
	case CodeInvalidPassword, CodeInvalidCredentials:
		return "Invalid email or password. Please try again.", http.StatusUnauthorized
	case CodeEmailNotFound:
		return "No account found with this email. Please sign up first.", http.StatusNotFound
	case CodeEmailExists:
		return "An account with this email already exists. Please sign in instead.", http.StatusConflict
	case CodeWeakPassword:
		return "Password is too weak. Please use a stronger password with at least 6 characters.", http.StatusBadRequest
	case CodeOperationDisabled:
		return "Sign ups are currently disabled. Please contact support.", http.StatusForbidden
	case CodeTooManyAttempts:
		return "Too many attempts. Please try again in a few minutes.", http.StatusTooManyRequests
	case CodeUserDisabled:
		return "This account has been temporarily suspended. Please contact support.", http.StatusForbidden
	case CodeInvalidEmail:
		return "Please enter a valid email address.", http.StatusBadRequest
	case CodeMissingPassword:
		return "Password must be at least 6 characters long.", http.StatusBadRequest
	}
	return "An error occurred. Please try again.", http.StatusInternalServerError
}
