package models

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

var (
	wsID   = "6f1c2d3e-4a5b-4c6d-8e9f-0a1b2c3d4e5f"
	taskID = "0d9c8b7a-6f5e-4d3c-8b2a-19f8e7d6c5b4"
	t0     = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
)

func strPtr(s string) *string { return &s }

func taskRow(id, title string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "workspace_id", "title", "description", "status", "priority",
		"assignee_id", "created_by", "due_date", "created_at", "updated_at", "tags", "time_estimate", "time_spent"}).
		AddRow(id, wsID, title, nil, "todo", "low", nil, "uid-owner", nil, t0, t0, "{}", nil, nil)
}

func workspaceRow(name string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "description", "created_by", "created_at", "updated_at", "color", "icon", "tags"}).
		AddRow(wsID, name, nil, "uid-owner", t0, t0, "", "", "{design,backend}")
}

func ctx() context.Context { return context.Background() }
