package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"taskflow/client"
	"taskflow/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wsID = "6f1c2d3e-4a5b-4c6d-8e9f-0a1b2c3d4e5f"

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// backend é uma API falsa com as rotas usadas pelos testes.
type backend struct {
	mu      sync.Mutex
	patches []map[string]json.RawMessage
}

func (b *backend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer id-1" {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}
			h(w, r)
		}
	}
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds models.Credentials
		json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret" {
			http.Error(w, "Invalid email or password", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(models.AuthResponse{
			User:    &models.User{ID: "uid-1", Email: creds.Email, DisplayName: "Ana"},
			IDToken: "id-1", RefreshToken: "refresh-1", ExpiresAt: time.Now().Add(time.Hour),
		})
	})
	mux.HandleFunc("GET /user/info", authed(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.User{ID: "uid-1", Email: "ana@example.com", DisplayName: "Ana"})
	}))
	mux.HandleFunc("GET /user/my-workspaces/list", authed(func(w http.ResponseWriter, r *http.Request) {
		f, _ := models.WorkspaceFilterFromQuery(r.URL.Query())
		list := []models.WorkspaceSummary{
			{Workspace: models.Workspace{ID: wsID, Name: "Design", Tags: []string{"ui"}}, MemberCount: 3, Role: models.RoleOwner},
			{Workspace: models.Workspace{ID: "ws-2", Name: "Backend"}, MemberCount: 1, Role: models.RoleMember},
		}
		json.NewEncoder(w).Encode(models.FilterWorkspaces(list, f))
	}))
	mux.HandleFunc("GET /workspace/{id}/task/list", authed(func(w http.ResponseWriter, r *http.Request) {
		f, err := models.TaskFilterFromQuery(r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		tasks := []models.Task{
			{ID: "t1", WorkspaceID: wsID, Title: "Fix login", Status: models.StatusDone, Priority: models.PriorityHigh, CreatedAt: t0},
			{ID: "t2", WorkspaceID: wsID, Title: "Write docs", Status: models.StatusTodo, Priority: models.PriorityLow, CreatedAt: t0.Add(time.Hour)},
		}
		json.NewEncoder(w).Encode(f.Apply(tasks))
	}))
	mux.HandleFunc("PUT /workspace/{id}/task/update/{task}", authed(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]json.RawMessage
		assert.NoError(t, json.Unmarshal(raw, &body))
		b.mu.Lock()
		b.patches = append(b.patches, body)
		b.mu.Unlock()

		var patch models.TaskPatch
		json.Unmarshal(raw, &patch)
		task := models.Task{ID: r.PathValue("task"), WorkspaceID: wsID, Title: "Fix login", Status: models.StatusTodo}
		patch.Apply(&task)
		json.NewEncoder(w).Encode(task)
	}))
	return mux
}

type harness struct {
	t         *testing.T
	server    string
	configDir string
	backend   *backend
}

func newHarness(t *testing.T) *harness {
	b := &backend{}
	srv := httptest.NewServer(b.handler(t))
	t.Cleanup(srv.Close)
	return &harness{t: t, server: srv.URL, configDir: t.TempDir(), backend: b}
}

// signIn grava uma sessão válida sem passar pelo login.
func (h *harness) signIn() {
	store := client.NewFileSessionStore(h.configDir)
	require.NoError(h.t, store.Save(&client.Session{
		User:    models.User{ID: "uid-1", Email: "ana@example.com"},
		IDToken: "id-1", RefreshToken: "refresh-1", ExpiresAt: time.Now().Add(time.Hour),
	}))
}

func (h *harness) run(stdin string, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--server", h.server, "--config-dir", h.configDir}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoginThenWhoami(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("", "login", "--email", "ana@example.com", "--password", "wrong")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	out, err := h.run("secret\n", "login", "--email", "ana@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as ana@example.com")

	out, err = h.run("", "whoami", "-o", "json")
	require.NoError(t, err)
	var me models.User
	require.NoError(t, json.Unmarshal([]byte(out), &me))
	assert.Equal(t, "uid-1", me.ID)
}

func TestCommandsRequireLogin(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "workspaces", "list")
	assert.ErrorIs(t, err, errNotSignedIn)
}

func TestWorkspacesListTable(t *testing.T) {
	h := newHarness(t)
	h.signIn()

	out, err := h.run("", "workspaces", "list", "--per-page", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Design")
	assert.NotContains(t, out, "Backend")
	assert.Contains(t, out, "use --page 2 for more")

	out, err = h.run("", "ws", "list", "--search", "back")
	require.NoError(t, err)
	assert.Contains(t, out, "Backend")
	assert.NotContains(t, out, "Design")
}

func TestTasksListFormats(t *testing.T) {
	h := newHarness(t)
	h.signIn()

	out, err := h.run("", "tasks", "list", wsID, "--status", "done", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "title: Fix login")
	assert.NotContains(t, out, "Write docs")

	out, err = h.run("", "tasks", "list", wsID, "--sort", "oldest")
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "Fix login"), strings.Index(out, "Write docs"))
	assert.NotContains(t, out, "In Progress")
	assert.Contains(t, out, "High")

	_, err = h.run("", "tasks", "list", wsID, "--status", "bogus")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestTasksUpdateSendsOnlyChangedFlags(t *testing.T) {
	h := newHarness(t)
	h.signIn()

	_, err := h.run("", "tasks", "update", wsID, "t1", "--status", "done", "--assignee", "")
	require.NoError(t, err)

	require.Len(t, h.backend.patches, 1)
	body := h.backend.patches[0]
	assert.Len(t, body, 2)
	assert.JSONEq(t, `"done"`, string(body["status"]))
	assert.JSONEq(t, `null`, string(body["assignee_id"]))

	_, err = h.run("", "tasks", "update", wsID, "t1")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Len(t, h.backend.patches, 1)
}

func TestInvalidOutputFormat(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "whoami", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestTaskFilterFlags(t *testing.T) {
	flags := taskFilterFlags{status: []string{"todo"}, dueAfter: "2024-05-01", dueBefore: "2024-05-01"}
	f, err := flags.filter()
	require.NoError(t, err)
	require.NotNil(t, f.DueAfter)
	require.NotNil(t, f.DueBefore)
	assert.Equal(t, "2024-05-01", f.DueBefore.String())

	flags = taskFilterFlags{dueAfter: "2024-06-01", dueBefore: "2024-05-01"}
	_, err = flags.filter()
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
