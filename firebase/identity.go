package firebase

import (
	"context"
	"fmt"
	"time"

	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

// IdentityService faz login por email e senha na API REST do Identity Toolkit.
// O Admin SDK não verifica senhas, por isso a chave de API do projeto é necessária.
type IdentityService struct {
	svc *identitytoolkit.Service
}

func NewIdentityService(ctx context.Context, apiKey string, opts ...option.ClientOption) (*IdentityService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("FIREBASE_API_KEY não está definido nas variáveis de ambiente")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar cliente do Identity Toolkit: %w", err)
	}
	return &IdentityService{svc: svc}, nil
}

// SignInResult são os tokens de uma sessão recém-aberta.
type SignInResult struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name,omitempty"`
	IDToken      string    `json:"id_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (s *IdentityService) SignInWithPassword(ctx context.Context, email, password string) (*SignInResult, error) {
	req := &identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}
	resp, err := s.svc.Relyingparty.VerifyPassword(req).Context(ctx).Do()
	if err != nil {
		if code := AuthErrorCode(err); code != "" {
			return nil, &AuthError{Code: code, Err: err}
		}
		return nil, fmt.Errorf("erro ao autenticar: %w", err)
	}

	return &SignInResult{
		UID:          resp.LocalId,
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}, nil
}
