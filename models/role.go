package models

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleGuest  Role = "guest"
)

// Roles em ordem decrescente de privilégio.
var Roles = []Role{RoleOwner, RoleAdmin, RoleMember, RoleGuest}

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleGuest:
		return true
	}
	return false
}

// ParseRole aceita "" como member, o papel padrão de um convite.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return RoleMember, nil
	}
	r := Role(s)
	if !r.Valid() {
		return "", InvalidInput("unknown role %q", s)
	}
	return r, nil
}

// WorkspacePermissions é o que um papel pode fazer dentro do workspace.
type WorkspacePermissions struct {
	CanEdit          bool `json:"can_edit"`
	CanDelete        bool `json:"can_delete"`
	CanInvite        bool `json:"can_invite"`
	CanManageMembers bool `json:"can_manage_members"`
	CanCreateTasks   bool `json:"can_create_tasks"`
}

func (r Role) Permissions() WorkspacePermissions {
	switch r {
	case RoleOwner:
		return WorkspacePermissions{CanEdit: true, CanDelete: true, CanInvite: true, CanManageMembers: true, CanCreateTasks: true}
	case RoleAdmin:
		return WorkspacePermissions{CanEdit: true, CanInvite: true, CanManageMembers: true, CanCreateTasks: true}
	case RoleMember:
		return WorkspacePermissions{CanEdit: true, CanCreateTasks: true}
	}
	return WorkspacePermissions{}
}

// CanWriteTasks: guests são somente leitura.
func (r Role) CanWriteTasks() bool { return r.Permissions().CanCreateTasks }

func (r Role) String() string { return string(r) }

// WorkspaceAccess é a resposta de /workspace/{id}/permissions.
// Role vazio significa que o usuário não é membro.
type WorkspaceAccess struct {
	WorkspaceID string               `json:"workspace_id"`
	Role        Role                 `json:"role"`
	Permissions WorkspacePermissions `json:"permissions"`
}

// AccessFor calcula as permissões efetivas; super admins sempre podem deletar.
func AccessFor(workspaceID string, role Role, superAdmin bool) WorkspaceAccess {
	p := role.Permissions()
	if superAdmin {
		p.CanDelete = true
	}
	return WorkspaceAccess{WorkspaceID: workspaceID, Role: role, Permissions: p}
}

// MemberRole é a resposta de /workspace/{id}/members/role/{user_id}.
type MemberRole struct {
	WorkspaceID string `json:"workspace_id"`
	UserID      string `json:"user_id"`
	Role        Role   `json:"role"`
}
