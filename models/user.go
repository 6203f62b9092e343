package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// User espelha a tabela users. O ID é o Firebase UID.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	IsSuperAdmin bool      `json:"is_super_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// Credentials é o corpo de /auth/register e /auth/login.
type Credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// AuthResponse é a resposta de /auth/register, /auth/login e /auth/finalize-login.
type AuthResponse struct {
	Message      string    `json:"message,omitempty"`
	User         *User     `json:"user"`
	IDToken      string    `json:"id_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitzero"`
	CustomToken  string    `json:"custom_token,omitempty"`
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (c *Credentials) Validate() error {
	c.Email = NormalizeEmail(c.Email)
	if c.Email == "" || !strings.Contains(c.Email, "@") {
		return InvalidInput("a valid email is required")
	}
	if c.Password == "" {
		return InvalidInput("password is required")
	}
	c.DisplayName = strings.TrimSpace(c.DisplayName)
	return nil
}

const userColumns = `firebase_uid, email, display_name, is_super_admin, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.IsSuperAdmin, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// EnsureUser cria o usuário local no primeiro login. Se já existir,
// atualiza o email (o Firebase é a fonte da verdade) e mantém o nome.
func EnsureUser(ctx context.Context, db *sql.DB, uid, email, displayName string) (*User, error) {
	if uid == "" {
		return nil, InvalidInput("firebase uid is required")
	}
	email = NormalizeEmail(email)
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}
	row := db.QueryRowContext(ctx, `
		INSERT INTO users (firebase_uid, email, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (firebase_uid) DO UPDATE SET email = EXCLUDED.email
		RETURNING `+userColumns, uid, email, displayName)
	u, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("email %s already belongs to another user: %w", email, ErrUserExists)
		}
		return nil, fmt.Errorf("falha ao provisionar usuário: %w", err)
	}
	return u, nil
}

func GetUserByUID(ctx context.Context, db *sql.DB, uid string) (*User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE firebase_uid = $1`, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", uid, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar usuário: %w", err)
	}
	return u, nil
}

// GetUserByEmail ignora caixa e espaços nas pontas.
func GetUserByEmail(ctx context.Context, db *sql.DB, email string) (*User, error) {
	email = NormalizeEmail(email)
	u, err := scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = $1`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user with email %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar usuário por email: %w", err)
	}
	return u, nil
}

func ListUsers(ctx context.Context, db *sql.DB) ([]User, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY display_name, email`)
	if err != nil {
		return nil, fmt.Errorf("falha ao listar usuários: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func UpdateDisplayName(ctx context.Context, db *sql.DB, uid, displayName string) (*User, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, InvalidInput("display name cannot be empty")
	}
	u, err := scanUser(db.QueryRowContext(ctx, `
		UPDATE users SET display_name = $1
		WHERE firebase_uid = $2
		RETURNING `+userColumns, displayName, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", uid, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("falha ao atualizar usuário: %w", err)
	}
	return u, nil
}

// DeleteUser remove o usuário local. Usado para desfazer um cadastro parcial
// e por /user/delete.
func DeleteUser(ctx context.Context, db *sql.DB, uid string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM users WHERE firebase_uid = $1`, uid)
	if pqCode(err) == pqForeignKeyViolation {
		return InvalidInput("user %s still created workspaces or tasks", uid)
	}
	if err != nil {
		return fmt.Errorf("falha ao remover usuário: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", uid, ErrNotFound)
	}
	return nil
}
