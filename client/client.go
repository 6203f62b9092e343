// Package client é o SDK do taskflow: cliente HTTP, sessão de autenticação,
// feed de mudanças e o cache de estado do workspace.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"taskflow/models"

	"golang.org/x/oauth2"
)

const (
	defaultTimeout = 30 * time.Second
	// workspacePageSize é usado para carregar todas as páginas de "meus workspaces".
	workspacePageSize = 100
)

// APIError é uma resposta não-2xx da API. errors.Is compara com os erros de models.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("taskflow api: %d %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch e.Status {
	case http.StatusBadRequest:
		return target == models.ErrInvalidInput
	case http.StatusNotFound:
		return target == models.ErrNotFound
	case http.StatusForbidden:
		if strings.Contains(e.Message, models.ErrNotMember.Error()) {
			return target == models.ErrNotMember
		}
		return target == models.ErrForbidden
	case http.StatusConflict:
		switch {
		case strings.Contains(e.Message, models.ErrAlreadyMember.Error()):
			return target == models.ErrAlreadyMember
		case strings.Contains(e.Message, models.ErrLastOwner.Error()):
			return target == models.ErrLastOwner
		}
		return target == models.ErrUserExists
	}
	return false
}

// Client fala com a API HTTP do taskflow.
type Client struct {
	baseURL *url.URL
	base    *http.Client
	tokens  oauth2.TokenSource
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient troca o http.Client de base (usado nos testes).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.base = hc }
}

// New cria o cliente. tokens pode ser nil para as rotas públicas.
func New(serverURL string, tokens oauth2.TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", serverURL)
	}
	c := &Client{baseURL: u, base: &http.Client{Timeout: defaultTimeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c.WithTokenSource(tokens), nil
}

// WithTokenSource devolve uma cópia que autentica com tokens.
func (c *Client) WithTokenSource(tokens oauth2.TokenSource) *Client {
	cp := *c
	cp.tokens = tokens
	cp.http = c.base
	if tokens != nil {
		cp.http = &http.Client{
			Timeout:   c.base.Timeout,
			Transport: &oauth2.Transport{Source: tokens, Base: c.base.Transport},
		}
	}
	return &cp
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func escape(s string) string { return url.PathEscape(s) }

func workspacePath(workspaceID, rest string) string {
	return "/workspace/" + escape(workspaceID) + rest
}

// --- Autenticação ---

func (c *Client) Register(ctx context.Context, creds models.Credentials) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", nil, creds, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Login(ctx context.Context, creds models.Credentials) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, creds, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) FinalizeLogin(ctx context.Context, idToken string) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	body := map[string]string{"idToken": idToken}
	if err := c.do(ctx, http.MethodPost, "/auth/finalize-login", nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
}

// --- Usuários ---

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodGet, "/user/info", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) UpdateMe(ctx context.Context, displayName string) (*models.User, error) {
	var u models.User
	body := map[string]string{"display_name": displayName}
	if err := c.do(ctx, http.MethodPut, "/user/update", nil, body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) DeleteMe(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/user/delete", nil, nil, nil)
}

func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, http.MethodGet, "/users/list", nil, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) GetUser(ctx context.Context, uid string) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodGet, "/users/info/"+escape(uid), nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// --- Workspaces ---

func (c *Client) MyWorkspaces(ctx context.Context, f models.WorkspaceFilter) (*models.WorkspacePage, error) {
	var page models.WorkspacePage
	if err := c.do(ctx, http.MethodGet, "/user/my-workspaces/list", f.Values(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// AllWorkspaces carrega mais páginas até a lista acabar.
func (c *Client) AllWorkspaces(ctx context.Context) ([]models.WorkspaceSummary, error) {
	f := models.WorkspaceFilter{Page: 1, PerPage: workspacePageSize}
	for {
		page, err := c.MyWorkspaces(ctx, f)
		if err != nil {
			return nil, err
		}
		if !page.HasMore {
			return page.Workspaces, nil
		}
		f.Page++
	}
}

func (c *Client) CreateWorkspace(ctx context.Context, in models.WorkspaceInput) (*models.Workspace, error) {
	var ws models.Workspace
	if err := c.do(ctx, http.MethodPost, "/workspace/create", nil, in, &ws); err != nil {
		return nil, err
	}
	return &ws, nil
}

func (c *Client) GetWorkspace(ctx context.Context, id string) (*models.Workspace, error) {
	var ws models.Workspace
	if err := c.do(ctx, http.MethodGet, "/workspace/info/"+escape(id), nil, nil, &ws); err != nil {
		return nil, err
	}
	return &ws, nil
}

func (c *Client) UpdateWorkspace(ctx context.Context, id string, patch models.WorkspacePatch) (*models.Workspace, error) {
	var ws models.Workspace
	if err := c.do(ctx, http.MethodPut, "/workspace/update/"+escape(id), nil, patch, &ws); err != nil {
		return nil, err
	}
	return &ws, nil
}

func (c *Client) DeleteWorkspace(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/workspace/delete/"+escape(id), nil, nil, nil)
}

func (c *Client) Permissions(ctx context.Context, id string) (*models.WorkspaceAccess, error) {
	var access models.WorkspaceAccess
	if err := c.do(ctx, http.MethodGet, workspacePath(id, "/permissions"), nil, nil, &access); err != nil {
		return nil, err
	}
	return &access, nil
}

// --- Membros ---

func (c *Client) ListMembers(ctx context.Context, workspaceID string) ([]models.Member, error) {
	var members []models.Member
	if err := c.do(ctx, http.MethodGet, workspacePath(workspaceID, "/members/list"), nil, nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// MemberRole devolve "" quando o usuário não é membro.
func (c *Client) MemberRole(ctx context.Context, workspaceID, uid string) (models.Role, error) {
	var mr models.MemberRole
	if err := c.do(ctx, http.MethodGet, workspacePath(workspaceID, "/members/role/"+escape(uid)), nil, nil, &mr); err != nil {
		return "", err
	}
	return mr.Role, nil
}

func (c *Client) AddMember(ctx context.Context, workspaceID string, in models.MemberInput) (*models.Member, error) {
	var m models.Member
	if err := c.do(ctx, http.MethodPost, workspacePath(workspaceID, "/members/add"), nil, in, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) UpdateMemberRole(ctx context.Context, workspaceID, uid string, role models.Role) (*models.Member, error) {
	var m models.Member
	body := map[string]models.Role{"role": role}
	if err := c.do(ctx, http.MethodPut, workspacePath(workspaceID, "/members/role/"+escape(uid)), nil, body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) RemoveMember(ctx context.Context, workspaceID, uid string) error {
	return c.do(ctx, http.MethodDelete, workspacePath(workspaceID, "/members/remove/"+escape(uid)), nil, nil, nil)
}

// --- Tarefas ---

func (c *Client) ListTasks(ctx context.Context, workspaceID string, f models.TaskFilter) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.do(ctx, http.MethodGet, workspacePath(workspaceID, "/task/list"), f.Values(), nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) GetTask(ctx context.Context, workspaceID, taskID string) (*models.Task, error) {
	var t models.Task
	if err := c.do(ctx, http.MethodGet, workspacePath(workspaceID, "/task/info/"+escape(taskID)), nil, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) CreateTask(ctx context.Context, workspaceID string, in models.NewTask) (*models.Task, error) {
	var t models.Task
	if err := c.do(ctx, http.MethodPost, workspacePath(workspaceID, "/task/create"), nil, in, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) UpdateTask(ctx context.Context, workspaceID, taskID string, patch models.TaskPatch) (*models.Task, error) {
	var t models.Task
	if err := c.do(ctx, http.MethodPut, workspacePath(workspaceID, "/task/update/"+escape(taskID)), nil, patch, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) DeleteTask(ctx context.Context, workspaceID, taskID string) error {
	return c.do(ctx, http.MethodDelete, workspacePath(workspaceID, "/task/delete/"+escape(taskID)), nil, nil, nil)
}

// realtimeURL troca http(s) por ws(s).
func (c *Client) realtimeURL(workspaceID string) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + workspacePath(workspaceID, "/realtime")
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.String()
}

// Subscribe segue o feed do workspace até ctx ser cancelado. Implementa Subscriber.
func (c *Client) Subscribe(ctx context.Context, workspaceID string, handle func(models.ChangeEvent)) error {
	return c.Feed(workspaceID).Run(ctx, handle)
}

var errNoTokens = errors.New("client has no token source")
