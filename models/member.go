package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Member é uma linha de workspace_members com os dados do usuário.
type Member struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	UserID      string    `json:"user_id"`
	Role        Role      `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
}

// MemberInput é o corpo de /members/add.
type MemberInput struct {
	Email string `json:"email"`
	Role  Role   `json:"role,omitempty"`
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const memberSelect = `
	SELECT m.id, m.workspace_id, m.user_id, m.role, m.joined_at, u.email, u.display_name
	FROM workspace_members m
	JOIN users u ON u.firebase_uid = m.user_id`

func scanMember(row rowScanner) (*Member, error) {
	var m Member
	if err := row.Scan(&m.ID, &m.WorkspaceID, &m.UserID, &m.Role, &m.JoinedAt, &m.Email, &m.DisplayName); err != nil {
		return nil, err
	}
	return &m, nil
}

func getMember(ctx context.Context, q querier, workspaceID, uid string) (*Member, error) {
	m, err := scanMember(q.QueryRowContext(ctx, memberSelect+` WHERE m.workspace_id = $1 AND m.user_id = $2`, workspaceID, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s in workspace %s: %w", uid, workspaceID, ErrNotMember)
	}
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar membro: %w", err)
	}
	return m, nil
}

// GetMemberRole devolve "" (sem erro) quando o usuário não é membro.
func GetMemberRole(ctx context.Context, db *sql.DB, workspaceID, uid string) (Role, error) {
	var role Role
	err := db.QueryRowContext(ctx, `
		SELECT role FROM workspace_members
		WHERE workspace_id = $1 AND user_id = $2
	`, workspaceID, uid).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("falha ao checar papel no workspace: %w", err)
	}
	return role, nil
}

func GetMember(ctx context.Context, db *sql.DB, workspaceID, uid string) (*Member, error) {
	return getMember(ctx, db, workspaceID, uid)
}

// GetMemberByID busca pela chave da linha; usado pelo feed de mudanças.
func GetMemberByID(ctx context.Context, db *sql.DB, id string) (*Member, error) {
	m, err := scanMember(db.QueryRowContext(ctx, memberSelect+` WHERE m.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("member %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar membro: %w", err)
	}
	return m, nil
}

// ListMembers devolve os membros na ordem de entrada.
func ListMembers(ctx context.Context, db *sql.DB, workspaceID string) ([]Member, error) {
	rows, err := db.QueryContext(ctx, memberSelect+` WHERE m.workspace_id = $1 ORDER BY m.joined_at`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar membros do workspace: %w", err)
	}
	defer rows.Close()

	members := []Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// AddMemberByEmail convida um usuário já cadastrado. O papel padrão é member.
func AddMemberByEmail(ctx context.Context, db *sql.DB, workspaceID, email string, role Role) (*Member, error) {
	if role == "" {
		role = RoleMember
	}
	if !role.Valid() {
		return nil, InvalidInput("unknown role %q", role)
	}
	user, err := GetUserByEmail(ctx, db, email)
	if err != nil {
		return nil, err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role)
		VALUES ($1, $2, $3)
	`, workspaceID, user.ID, role)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%s: %w", user.Email, ErrAlreadyMember)
		}
		return nil, translatePQ(err, "workspace member")
	}
	return getMember(ctx, db, workspaceID, user.ID)
}

// lockWorkspace serializa mudanças de membresia do mesmo workspace,
// para que dois owners não possam se remover ao mesmo tempo.
func lockWorkspace(ctx context.Context, tx *sql.Tx, workspaceID string) error {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM workspaces WHERE id = $1 FOR UPDATE`, workspaceID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("workspace %s: %w", workspaceID, ErrNotFound)
	}
	return err
}

func countOwners(ctx context.Context, tx *sql.Tx, workspaceID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM workspace_members
		WHERE workspace_id = $1 AND role = 'owner'
	`, workspaceID).Scan(&n)
	return n, err
}

// RemoveMember recusa remover o último owner.
func RemoveMember(ctx context.Context, db *sql.DB, workspaceID, uid string) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("falha ao iniciar transação: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = lockWorkspace(ctx, tx, workspaceID); err != nil {
		return err
	}
	m, err := getMember(ctx, tx, workspaceID, uid)
	if err != nil {
		return err
	}
	if m.Role == RoleOwner {
		var owners int
		if owners, err = countOwners(ctx, tx, workspaceID); err != nil {
			return fmt.Errorf("falha ao contar owners: %w", err)
		}
		if owners <= 1 {
			err = ErrLastOwner
			return err
		}
	}

	if _, err = tx.ExecContext(ctx, `
		DELETE FROM workspace_members WHERE workspace_id = $1 AND user_id = $2
	`, workspaceID, uid); err != nil {
		return fmt.Errorf("falha ao remover usuário do workspace: %w", err)
	}
	return tx.Commit()
}

// UpdateMemberRole troca o papel de um membro. Rebaixar o último owner é recusado.
func UpdateMemberRole(ctx context.Context, db *sql.DB, workspaceID, uid string, role Role) (m *Member, err error) {
	if !role.Valid() {
		return nil, InvalidInput("unknown role %q", role)
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

	if err = lockWorkspace(ctx, tx, workspaceID); err != nil {
		return nil, err
	}
	if m, err = getMember(ctx, tx, workspaceID, uid); err != nil {
		return nil, err
	}
	if m.Role == role {
		return m, tx.Commit()
	}
	if m.Role == RoleOwner {
		var owners int
		if owners, err = countOwners(ctx, tx, workspaceID); err != nil {
			return nil, fmt.Errorf("falha ao contar owners: %w", err)
		}
		if owners <= 1 {
			err = ErrLastOwner
			return nil, err
		}
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE workspace_members SET role = $1 WHERE workspace_id = $2 AND user_id = $3
	`, role, workspaceID, uid); err != nil {
		return nil, translatePQ(err, "member role")
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	m.Role = role
	return m, nil
}
