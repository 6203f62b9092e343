package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRolePermissions(t *testing.T) {
	tests := []struct {
		role Role
		want WorkspacePermissions
	}{
		{RoleOwner, WorkspacePermissions{CanEdit: true, CanDelete: true, CanInvite: true, CanManageMembers: true, CanCreateTasks: true}},
		{RoleAdmin, WorkspacePermissions{CanEdit: true, CanInvite: true, CanManageMembers: true, CanCreateTasks: true}},
		{RoleMember, WorkspacePermissions{CanEdit: true, CanCreateTasks: true}},
		{RoleGuest, WorkspacePermissions{}},
		{"", WorkspacePermissions{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.role.Permissions())
		})
	}
	assert.False(t, RoleGuest.CanWriteTasks())
	assert.True(t, RoleMember.CanWriteTasks())
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("")
	require.NoError(t, err)
	assert.Equal(t, RoleMember, r)

	r, err = ParseRole("admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)

	_, err = ParseRole("superuser")
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestAccessForSuperAdmin(t *testing.T) {
	a := AccessFor("ws", RoleAdmin, false)
	assert.False(t, a.Permissions.CanDelete)

	a = AccessFor("ws", RoleAdmin, true)
	assert.True(t, a.Permissions.CanDelete)
	assert.True(t, a.Permissions.CanInvite)

	a = AccessFor("ws", "", true)
	assert.Equal(t, Role(""), a.Role)
	assert.True(t, a.Permissions.CanDelete)
	assert.False(t, a.Permissions.CanEdit)
}
