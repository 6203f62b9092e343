package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"taskflow/models"
	"taskflow/utilities"

	"golang.org/x/oauth2"
)

// ErrSignedOut é devolvido por Token quando não há sessão.
var ErrSignedOut = errors.New("not signed in")

const (
	// expiryDelta antecipa a renovação para o token não vencer no meio da requisição.
	expiryDelta    = time.Minute
	refreshTimeout = 30 * time.Second
	sessionFile    = "session.json"
)

// Session é o que fica salvo entre execuções.
type Session struct {
	User         models.User `json:"user"`
	IDToken      string      `json:"id_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresAt    time.Time   `json:"expires_at"`
}

func (s *Session) valid(now time.Time) bool {
	return s.IDToken != "" && now.Add(expiryDelta).Before(s.ExpiresAt)
}

func (s *Session) oauthToken() *oauth2.Token {
	return &oauth2.Token{AccessToken: s.IDToken, TokenType: "Bearer", RefreshToken: s.RefreshToken, Expiry: s.ExpiresAt}
}

// SessionStore persiste a sessão. Load devolve (nil, nil) quando não há sessão.
type SessionStore interface {
	Load() (*Session, error)
	Save(*Session) error
	Clear() error
}

// FileSessionStore grava a sessão em JSON com permissão 0600.
type FileSessionStore struct {
	Path string
}

func NewFileSessionStore(dir string) *FileSessionStore {
	return &FileSessionStore{Path: filepath.Join(dir, sessionFile)}
}

func (f *FileSessionStore) Load() (*Session, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("invalid session file %s: %w", f.Path, err)
	}
	return &s, nil
}

func (f *FileSessionStore) Save(s *Session) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return os.Rename(tmp, f.Path)
}

func (f *FileSessionStore) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}

// MemorySessionStore não persiste nada.
type MemorySessionStore struct {
	mu sync.Mutex
	s  *Session
}

func (m *MemorySessionStore) Load() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s == nil {
		return nil, nil
	}
	cp := *m.s
	return &cp, nil
}

func (m *MemorySessionStore) Save(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.s = &cp
	return nil
}

func (m *MemorySessionStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = nil
	return nil
}

// RefreshConfig aponta para o endpoint de secure token do Firebase.
type RefreshConfig struct {
	APIKey   string
	TokenURL string
	// HTTPClient é opcional; usado nos testes.
	HTTPClient *http.Client
}

func (r RefreshConfig) oauthConfig() *oauth2.Config {
	tokenURL := r.TokenURL
	if r.APIKey != "" {
		u, err := url.Parse(tokenURL)
		if err == nil {
			q := u.Query()
			q.Set("key", r.APIKey)
			u.RawQuery = q.Encode()
			tokenURL = u.String()
		}
	}
	return &oauth2.Config{Endpoint: oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams}}
}

// AuthSession é o cache da sessão de autenticação. Implementa oauth2.TokenSource
// e renova o ID token com o refresh token quando ele está para vencer.
type AuthSession struct {
	api     *Client
	store   SessionStore
	refresh RefreshConfig
	now     func() time.Time

	mu        sync.Mutex
	current   *Session
	listeners map[int]func(*Session)
	nextID    int
}

// NewAuthSession restaura a sessão salva, se houver.
func NewAuthSession(api *Client, store SessionStore, refresh RefreshConfig) (*AuthSession, error) {
	s := &AuthSession{
		api:       api.WithTokenSource(nil),
		store:     store,
		refresh:   refresh,
		now:       time.Now,
		listeners: make(map[int]func(*Session)),
	}
	saved, err := store.Load()
	if err != nil {
		return nil, err
	}
	s.current = saved
	return s, nil
}

// Client devolve um cliente autenticado por esta sessão.
func (s *AuthSession) Client() *Client {
	return s.api.WithTokenSource(s)
}

// Current devolve uma cópia da sessão atual, ou nil.
func (s *AuthSession) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}

// OnChange registra fn para login, logout e renovação. Devolve a função que cancela o registro.
func (s *AuthSession) OnChange(fn func(*Session)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// set troca a sessão, persiste e avisa os ouvintes.
func (s *AuthSession) set(next *Session) error {
	var err error
	if next == nil {
		err = s.store.Clear()
	} else {
		err = s.store.Save(next)
	}

	s.mu.Lock()
	s.current = next
	fns := make([]func(*Session), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(s.Current())
	}
	return err
}

func (s *AuthSession) SignIn(ctx context.Context, email, password string) (*Session, error) {
	resp, err := s.api.Login(ctx, models.Credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	if resp.User == nil || resp.IDToken == "" {
		return nil, errors.New("login response without tokens")
	}
	next := &Session{User: *resp.User, IDToken: resp.IDToken, RefreshToken: resp.RefreshToken, ExpiresAt: resp.ExpiresAt}
	if err := s.set(next); err != nil {
		return nil, err
	}
	utilities.LogDebug("sessão aberta para %s", next.User.Email)
	return s.Current(), nil
}

// SignUp cadastra e em seguida faz login com as mesmas credenciais.
func (s *AuthSession) SignUp(ctx context.Context, email, password, displayName string) (*Session, error) {
	if _, err := s.api.Register(ctx, models.Credentials{Email: email, Password: password, DisplayName: displayName}); err != nil {
		return nil, err
	}
	return s.SignIn(ctx, email, password)
}

// SignOut revoga os refresh tokens no servidor e limpa a sessão local,
// mesmo que a revogação falhe.
func (s *AuthSession) SignOut(ctx context.Context) error {
	if s.Current() == nil {
		return nil
	}
	if err := s.Client().Logout(ctx); err != nil {
		utilities.LogWarn("falha ao revogar tokens no servidor: %v", err)
	}
	return s.set(nil)
}

// Token implementa oauth2.TokenSource.
func (s *AuthSession) Token() (*oauth2.Token, error) {
	cur := s.Current()
	if cur == nil {
		return nil, ErrSignedOut
	}
	if cur.valid(s.now()) {
		return cur.oauthToken(), nil
	}
	if cur.RefreshToken == "" {
		return nil, fmt.Errorf("session expired: %w", ErrSignedOut)
	}

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if s.refresh.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.refresh.HTTPClient)
	}

	tok, err := s.refresh.oauthConfig().TokenSource(ctx, &oauth2.Token{RefreshToken: cur.RefreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh id token: %w", err)
	}

	next := *cur
	next.IDToken = tok.AccessToken
	if idToken, ok := tok.Extra("id_token").(string); ok && idToken != "" {
		next.IDToken = idToken
	}
	if tok.RefreshToken != "" {
		next.RefreshToken = tok.RefreshToken
	}
	next.ExpiresAt = tok.Expiry
	if err := s.set(&next); err != nil {
		utilities.LogWarn("falha ao salvar sessão renovada: %v", err)
	}
	utilities.LogDebug("ID token renovado para %s", next.User.Email)
	return next.oauthToken(), nil
}
