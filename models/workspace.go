package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

const maxWorkspaceName = 100

type Workspace struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedBy   string    `json:"created_by"` // Firebase UID de quem criou
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Color       string    `json:"color,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Tags        []string  `json:"tags"`
}

// WorkspaceSummary é uma entrada da lista "meus workspaces".
type WorkspaceSummary struct {
	Workspace
	MemberCount int  `json:"member_count"`
	Role        Role `json:"role"`
	CanDelete   bool `json:"can_delete"`
}

// WorkspaceInput é o corpo de /workspace/create.
type WorkspaceInput struct {
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Color       string   `json:"color,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

func validateWorkspaceName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", InvalidInput("workspace name cannot be empty")
	}
	if len([]rune(name)) > maxWorkspaceName {
		return "", InvalidInput("workspace name must have at most %d characters", maxWorkspaceName)
	}
	return name, nil
}

func (in *WorkspaceInput) Validate() error {
	name, err := validateWorkspaceName(in.Name)
	if err != nil {
		return err
	}
	in.Name = name
	in.Description = trimmedPtr(in.Description)
	in.Color = strings.TrimSpace(in.Color)
	in.Icon = strings.TrimSpace(in.Icon)
	in.Tags = normalizeTags(in.Tags)
	return nil
}

// WorkspacePatch é uma atualização parcial; campos nil não mudam.
type WorkspacePatch struct {
	Name        *string          `json:"name,omitempty"`
	Description Nullable[string] `json:"description,omitzero"`
	Color       *string          `json:"color,omitempty"`
	Icon        *string          `json:"icon,omitempty"`
	Tags        *[]string        `json:"tags,omitempty"`
}

func (p *WorkspacePatch) Validate() error {
	if p.Name != nil {
		name, err := validateWorkspaceName(*p.Name)
		if err != nil {
			return err
		}
		p.Name = &name
	}
	if p.Description.Set && p.Description.Valid {
		p.Description = NullableFrom(trimmedPtr(&p.Description.Value))
	}
	if p.Tags != nil {
		tags := normalizeTags(*p.Tags)
		p.Tags = &tags
	}
	return nil
}

func (p WorkspacePatch) Empty() bool {
	return p.Name == nil && !p.Description.Set && p.Color == nil && p.Icon == nil && p.Tags == nil
}

const workspaceColumns = `id, name, description, created_by, created_at, updated_at, color, icon, tags`

func workspaceDest(w *Workspace) []interface{} {
	return []interface{}{&w.ID, &w.Name, &w.Description, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt, &w.Color, &w.Icon, pq.Array(&w.Tags)}
}

func scanWorkspace(row rowScanner) (*Workspace, error) {
	var w Workspace
	if err := row.Scan(workspaceDest(&w)...); err != nil {
		return nil, err
	}
	if w.Tags == nil {
		w.Tags = []string{}
	}
	return &w, nil
}

// CreateWorkspaceWithOwner cria o workspace e a membresia de owner numa única transação.
func CreateWorkspaceWithOwner(ctx context.Context, db *sql.DB, ownerUID string, in WorkspaceInput) (ws *Workspace, err error) {
	if err = in.Validate(); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("falha ao iniciar transação: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	ws, err = scanWorkspace(tx.QueryRowContext(ctx, `
		INSERT INTO workspaces (name, description, created_by, color, icon, tags)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+workspaceColumns,
		in.Name, in.Description, ownerUID, in.Color, in.Icon, pq.Array(in.Tags)))
	if err != nil {
		return nil, translatePQ(err, "workspace")
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role)
		VALUES ($1, $2, $3)
	`, ws.ID, ownerUID, RoleOwner); err != nil {
		return nil, translatePQ(err, "workspace owner")
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("falha ao confirmar criação do workspace: %w", err)
	}
	return ws, nil
}

// ListUserWorkspaces devolve os workspaces do usuário, mais novos primeiro.
func ListUserWorkspaces(ctx context.Context, db *sql.DB, uid string) ([]WorkspaceSummary, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT w.id, w.name, w.description, w.created_by, w.created_at, w.updated_at, w.color, w.icon, w.tags,
		       (SELECT COUNT(*) FROM workspace_members c WHERE c.workspace_id = w.id) AS member_count,
		       m.role, u.is_super_admin
		FROM workspaces w
		JOIN workspace_members m ON m.workspace_id = w.id
		JOIN users u ON u.firebase_uid = m.user_id
		WHERE m.user_id = $1
		ORDER BY w.created_at DESC
	`, uid)
	if err != nil {
		return nil, fmt.Errorf("falha ao listar workspaces: %w", err)
	}
	defer rows.Close()

	list := []WorkspaceSummary{}
	for rows.Next() {
		var s WorkspaceSummary
		var superAdmin bool
		dest := append(workspaceDest(&s.Workspace), &s.MemberCount, &s.Role, &superAdmin)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if s.Tags == nil {
			s.Tags = []string{}
		}
		s.CanDelete = s.Role.Permissions().CanDelete || superAdmin
		list = append(list, s)
	}
	return list, rows.Err()
}

func GetWorkspace(ctx context.Context, db *sql.DB, id string) (*Workspace, error) {
	ws, err := scanWorkspace(db.QueryRowContext(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workspace %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar workspace: %w", err)
	}
	return ws, nil
}

// UpdateWorkspace aplica o patch e devolve a linha atualizada.
func UpdateWorkspace(ctx context.Context, db *sql.DB, id string, patch WorkspacePatch) (*Workspace, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return GetWorkspace(ctx, db, id)
	}

	var b updateBuilder
	if patch.Name != nil {
		b.set("name", *patch.Name)
	}
	if patch.Description.Set {
		b.set("description", patch.Description.Ptr())
	}
	if patch.Color != nil {
		b.set("color", strings.TrimSpace(*patch.Color))
	}
	if patch.Icon != nil {
		b.set("icon", strings.TrimSpace(*patch.Icon))
	}
	if patch.Tags != nil {
		b.set("tags", pq.Array(*patch.Tags))
	}
	b.where("id", id)
	q, args := b.build("workspaces", workspaceColumns)

	ws, err := scanWorkspace(db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workspace %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, translatePQ(err, "workspace")
	}
	return ws, nil
}

// DeleteWorkspace remove o workspace; membros e tarefas caem em cascata.
func DeleteWorkspace(ctx context.Context, db *sql.DB, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("workspace %s: %w", id, ErrNotFound)
	}
	return nil
}
