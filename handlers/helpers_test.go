package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"taskflow/firebase"
	"taskflow/models"
	"taskflow/realtime"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

const (
	wsID   = "6f1c2d3e-4a5b-4c6d-8e9f-0a1b2c3d4e5f"
	taskID = "0d9c8b7a-6f5e-4d3c-8b2a-19f8e7d6c5b4"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// fakeAuth aceita tokens no formato "token-<uid>".
type fakeAuth struct {
	mu        sync.Mutex
	createErr error
	nextUID   string
	deleted   []string
	revoked   []string
}

func (f *fakeAuth) VerifyIDToken(_ context.Context, tok string) (*firebase.Identity, error) {
	if len(tok) <= len("token-") || tok[:len("token-")] != "token-" {
		return nil, errors.New("invalid token")
	}
	uid := tok[len("token-"):]
	return &firebase.Identity{UID: uid, Email: uid + "@example.com"}, nil
}

func (f *fakeAuth) CreateUser(_ context.Context, email, _, name string) (*firebase.Identity, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &firebase.Identity{UID: f.nextUID, Email: email, DisplayName: name}, nil
}

func (f *fakeAuth) DeleteUser(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, uid)
	return nil
}

func (f *fakeAuth) RevokeRefreshTokens(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, uid)
	return nil
}

func (f *fakeAuth) CustomToken(_ context.Context, uid string) (string, error) {
	return "custom-" + uid, nil
}

type fakeSignIn struct {
	res *firebase.SignInResult
	err error
}

func (f fakeSignIn) SignInWithPassword(context.Context, string, string) (*firebase.SignInResult, error) {
	return f.res, f.err
}

type fakeActivity struct {
	purged []string
}

func (f *fakeActivity) Record(context.Context, models.ChangeEvent) error { return nil }

func (f *fakeActivity) PurgeWorkspace(_ context.Context, id string) error {
	f.purged = append(f.purged, id)
	return nil
}

type testEnv struct {
	h        *Handlers
	db       *sql.DB
	mock     sqlmock.Sqlmock
	auth     *fakeAuth
	activity *fakeActivity
	hub      *realtime.Hub
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	env := &testEnv{db: db, mock: mock, auth: &fakeAuth{}, activity: &fakeActivity{}, hub: realtime.NewHub(8)}
	env.h = New(db, env.auth, fakeSignIn{}, env.hub, env.activity)
	return env
}

func (e *testEnv) do(method, path, uid string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if uid != "" {
		req.Header.Set("Authorization", "Bearer token-"+uid)
	}
	rec := httptest.NewRecorder()
	e.h.Routes().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doRaw(method, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", authorization)
	rec := httptest.NewRecorder()
	e.h.Routes().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) expectRole(uid string, role models.Role) {
	rows := sqlmock.NewRows([]string{"role"})
	if role != "" {
		rows.AddRow(string(role))
	}
	e.mock.ExpectQuery("SELECT role FROM workspace_members").WithArgs(wsID, uid).WillReturnRows(rows)
}

func userRows(uid string, superAdmin bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"firebase_uid", "email", "display_name", "is_super_admin", "created_at"}).
		AddRow(uid, uid+"@example.com", uid, superAdmin, t0)
}

func memberRows(uid string, role models.Role) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "workspace_id", "user_id", "role", "joined_at", "email", "display_name"}).
		AddRow("m-"+uid, wsID, uid, string(role), t0, uid+"@example.com", uid)
}

func taskRows(id, title string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "workspace_id", "title", "description", "status", "priority",
		"assignee_id", "created_by", "due_date", "created_at", "updated_at", "tags", "time_estimate", "time_spent"}).
		AddRow(id, wsID, title, nil, "todo", "low", nil, "uid-owner", nil, t0, t0, "{}", nil, nil)
}
