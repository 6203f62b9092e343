package firebase

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"

	"taskflow/utilities"
)

const minPasswordLength = 6

// AuthService encapsula o cliente de Auth do Admin SDK.
type AuthService struct {
	client *auth.Client
}

func NewAuthService(ctx context.Context, app *firebase.App) (*AuthService, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("erro ao obter cliente de Auth: %w", err)
	}
	return &AuthService{client: client}, nil
}

// Identity são os dados do usuário extraídos de um ID token verificado.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
}

func (s *AuthService) VerifyIDToken(ctx context.Context, idToken string) (*Identity, error) {
	token, err := s.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("erro ao verificar token: %w", err)
	}
	return identityFromClaims(token.UID, token.Claims), nil
}

func identityFromClaims(uid string, claims map[string]interface{}) *Identity {
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	return &Identity{UID: uid, Email: email, DisplayName: name}
}

func (s *AuthService) CreateUser(ctx context.Context, email, password, displayName string) (*Identity, error) {
	if len(password) < minPasswordLength {
		return nil, &AuthError{Code: CodeWeakPassword}
	}

	params := (&auth.UserToCreate{}).
		Email(email).
		EmailVerified(false).
		Password(password).
		Disabled(false)
	if displayName != "" {
		params = params.DisplayName(displayName)
	}

	user, err := s.client.CreateUser(ctx, params)
	if err != nil {
		return nil, wrapAdminError(err)
	}

	utilities.LogInfo("Usuário criado com sucesso: UID = %s", user.UID)
	return &Identity{UID: user.UID, Email: user.Email, DisplayName: user.DisplayName}, nil
}

func (s *AuthService) GetUserByEmail(ctx context.Context, email string) (*Identity, error) {
	user, err := s.client.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, wrapAdminError(err)
	}
	return &Identity{UID: user.UID, Email: user.Email, DisplayName: user.DisplayName}, nil
}

func (s *AuthService) DeleteUser(ctx context.Context, uid string) error {
	if err := s.client.DeleteUser(ctx, uid); err != nil {
		return fmt.Errorf("erro ao deletar usuário: %w", err)
	}
	utilities.LogInfo("Usuário com UID %s deletado com sucesso", uid)
	return nil
}

// RevokeRefreshTokens invalida as sessões do usuário (logout em todos os dispositivos).
func (s *AuthService) RevokeRefreshTokens(ctx context.Context, uid string) error {
	if err := s.client.RevokeRefreshTokens(ctx, uid); err != nil {
		return fmt.Errorf("erro ao revogar tokens: %w", err)
	}
	return nil
}

func (s *AuthService) CustomToken(ctx context.Context, uid string) (string, error) {
	token, err := s.client.CustomToken(ctx, uid)
	if err != nil {
		return "", fmt.Errorf("erro ao gerar custom token: %w", err)
	}
	return token, nil
}

func wrapAdminError(err error) error {
	switch {
	case auth.IsEmailAlreadyExists(err):
		return &AuthError{Code: CodeEmailExists, Err: err}
	case auth.IsUserNotFound(err):
		return &AuthError{Code: CodeEmailNotFound, Err: err}
	case auth.IsInvalidEmail(err):
		return &AuthError{Code: CodeInvalidEmail, Err: err}
	}
	return fmt.Errorf("firebase auth: %w", err)
}
