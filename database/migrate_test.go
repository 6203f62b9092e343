package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaCoversRealtimeTables(t *testing.T) {
	for _, table := range []string{"workspaces", "workspace_members", "tasks"} {
		assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS "+table)
		assert.Contains(t, schemaSQL, "AFTER INSERT OR UPDATE OR DELETE ON "+table)
	}
	assert.Contains(t, schemaSQL, "pg_notify('"+ChangesChannel+"'")
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS users")).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, Migrate(context.Background(), db))

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))
	assert.Error(t, Migrate(context.Background(), db))

	require.NoError(t, mock.ExpectationsWereMet())
}
