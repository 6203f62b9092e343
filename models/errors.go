package models

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Erros sentinela compartilhados por handlers e SDK. Compare com errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrNotMember     = errors.New("user is not a member of this workspace")
	ErrAlreadyMember = errors.New("user is already a member of this workspace")
	ErrLastOwner     = errors.New("workspace must keep at least one owner")
	ErrUserExists    = errors.New("user already exists")
	ErrInvalidInput  = errors.New("invalid input")
)

// InvalidInput embrulha ErrInvalidInput com um detalhe legível.
func InvalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Códigos SQLSTATE do Postgres usados na tradução de erros.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
	pqInvalidTextRepr     = "22P02"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool { return pqCode(err) == pqUniqueViolation }

// translatePQ converte violações de constraint em erros de entrada.
func translatePQ(err error, what string) error {
	switch pqCode(err) {
	case pqForeignKeyViolation:
		return InvalidInput("%s references a missing record", what)
	case pqCheckViolation:
		return InvalidInput("%s violates a check constraint", what)
	case pqInvalidTextRepr:
		return InvalidInput("%s has a malformed value", what)
	}
	return fmt.Errorf("%s: %w", what, err)
}
