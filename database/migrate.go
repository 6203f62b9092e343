package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"taskflow/utilities"
)

//go:embed schema.sql
var schemaSQL string

// Migrate aplica o schema embutido. Todas as instruções são idempotentes.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("falha ao aplicar schema: %w", err)
	}
	utilities.LogInfo("Schema do banco aplicado")
	return nil
}
