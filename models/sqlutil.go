package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// rowScanner cobre *sql.Row e *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// ParseID valida um identificador UUID vindo da URL ou do corpo.
func ParseID(kind, s string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", InvalidInput("invalid %s id %q", kind, s)
	}
	return id.String(), nil
}

// updateBuilder monta um UPDATE parcial com placeholders numerados.
type updateBuilder struct {
	sets  []string
	conds []string
	args  []interface{}
}

func (b *updateBuilder) arg(v interface{}) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *updateBuilder) set(column string, value interface{}) {
	b.sets = append(b.sets, column+" = "+b.arg(value))
}

func (b *updateBuilder) where(column string, value interface{}) {
	b.conds = append(b.conds, column+" = "+b.arg(value))
}

// build sempre acrescenta updated_at = NOW().
func (b *updateBuilder) build(table, returning string) (string, []interface{}) {
	q := fmt.Sprintf("UPDATE %s SET %s, updated_at = NOW() WHERE %s RETURNING %s",
		table, strings.Join(b.sets, ", "), strings.Join(b.conds, " AND "), returning)
	return q, b.args
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		out = append(out, t)
	}
	return out
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
