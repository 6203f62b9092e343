package handlers

import (
	"net/http"

	"taskflow/models"
	"taskflow/utilities"

	"github.com/gorilla/mux"
)

func (h *Handlers) CreateWorkspaceHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requestUID(w, r, "CreateWorkspaceHandler")
	if !ok {
		return
	}
	var input models.WorkspaceInput
	if !decodeJSON(w, r, &input, "CreateWorkspaceHandler") {
		return
	}

	ws, err := models.CreateWorkspaceWithOwner(r.Context(), h.db, uid, input)
	if err != nil {
		writeError(w, err, "CreateWorkspaceHandler")
		return
	}
	utilities.LogInfo("CreateWorkspaceHandler: Workspace criado com sucesso: %s (ID: %s)", ws.Name, ws.ID)
	writeJSON(w, http.StatusCreated, ws)
}

// GetWorkspaceInfoHandler busca informações de um workspace específico
func (h *Handlers) GetWorkspaceInfoHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requestUID(w, r, "GetWorkspaceInfoHandler")
	if !ok {
		return
	}
	workspaceID, ok := pathID(w, r, "workspace_id")
	if !ok {
		return
	}
	if _, ok := h.requireRole(w, r, workspaceID, uid); !ok {
		return
	}

	ws, err := models.GetWorkspace(r.Context(), h.db, workspaceID)
	if err != nil {
		writeError(w, err, "GetWorkspaceInfoHandler")
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (h *Handlers) UpdateWorkspaceHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requestUID(w, r, "UpdateWorkspaceHandler")
	if !ok {
		return
	}
	workspaceID, ok := pathID(w, r, "workspace_id")
	if !ok {
		return
	}
	if _, ok := h.requireRole(w, r, workspaceID, uid, models.RoleOwner, models.RoleAdmin); !ok {
		return
	}

	var patch models.WorkspacePatch
	if !decodeJSON(w, r, &patch, "UpdateWorkspaceHandler") {
		return
	}
	ws, err := models.UpdateWorkspace(r.Context(), h.db, workspaceID, patch)
	if err != nil {
		writeError(w, err, "UpdateWorkspaceHandler")
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

// DeleteWorkspaceHandler: somente o owner ou um super admin.
// A limpeza do histórico de atividade no Firestore é agendada em seguida.
func (h *Handlers) DeleteWorkspaceHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requestUID(w, r, "DeleteWorkspaceHandler")
	if !ok {
		return
	}
	workspaceID, ok := pathID(w, r, "workspace_id")
	if !ok {
		return
	}

	access, err := h.access(r, workspaceID, uid)
	if err != nil {
		writeError(w, err, "DeleteWorkspaceHandler")
		return
	}
	if !access.Permissions.CanDelete {
		utilities.LogDebug("Usuário %s tentou deletar o workspace %s sem permissão", uid, workspaceID)
		http.Error(w, "Only the workspace owner can delete it", http.StatusForbidden)
		return
	}

	if err := models.DeleteWorkspace(r.Context(), h.db, workspaceID); err != nil {
		writeError(w, err, "DeleteWorkspaceHandler")
		return
	}
	if err := h.activity.PurgeWorkspace(r.Context(), workspaceID); err != nil {
		utilities.LogError(err, "DeleteWorkspaceHandler: falha ao agendar limpeza da atividade do workspace "+workspaceID)
	}

	utilities.LogInfo("Workspace %s deletado por %s", workspaceID, uid)
	writeMessage(w, http.StatusOK, "Workspace deleted successfully")
}

func (h *Handlers) access(r *http.Request, workspaceID, uid string) (models.WorkspaceAccess, error) {
	role, err := models.GetMemberRole(r.Context(), h.db, workspaceID, uid)
	if err != nil {
		return models.WorkspaceAccess{}, err
	}
	user, err := models.GetUserByUID(r.Context(), h.db, uid)
	if err != nil {
		return models.WorkspaceAccess{}, err
	}
	return models.AccessFor(workspaceID, role, user.IsSuperAdmin), nil
}

// WorkspacePermissionsHandler responde mesmo para quem não é membro (papel vazio).
func (h *Handlers) WorkspacePermissionsHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requestUID(w, r, "WorkspacePermissionsHandler")
	if !ok {
		return
	}
	workspaceID, ok := pathID(w, r, "workspace_id")
	if !ok {
		return
	}
	access, err := h.access(r, workspaceID, uid)
	if err != nil {
		writeError(w, err, "WorkspacePermissionsHandler")
		return
	}
	writeJSON(w, http.StatusOK, access)
}

func (h *Handlers) ListWorkspaceMembersHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requestUID(w, r, "ListWorkspaceMembersHandler")
	if !ok {
		return
	}
	workspaceID, ok := pathID(w, r, "workspace_id")
	if !ok {
		return
	}
	if _, ok := h.requireRole(w, r, workspaceID, uid); !ok {
		return
	}

	members, err := models.ListMembers(r.Context(), h.db, workspaceID)
	if err != nil {
		writeError(w, err, "ListWorkspaceMembersHandler")
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// GetMemberRoleHandler devolve papel vazio quando o usuário consultado não é membro.
// Consultar o próprio papel não exige ser membro.
func (h *Handlers) GetMemberRoleHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requestUID(w, r, "GetMemberRoleHandler")
	if !ok {
		return
	}
	workspaceID, ok := pathID(w, r, "workspace_id")
	if !ok {
		return
	}
	target := mux.Vars(r)["user_id"]
	if target != uid {
		if _, ok := h.requireRole(w, r, workspaceID, uid); !ok {
			return
		}
	}

	role, err := models.GetMemberRole(r.Context(), h.db, workspaceID, target)
	if err != nil {
		writeError(w, err, "GetMemberRoleHandler")
		return
	}
	writeJSON(w, http.StatusOK, models.MemberRole{WorkspaceID: workspaceID, UserID: target, Role: role})
}

// AddUserToWorkspaceHandler: owner ou admin; só um owner concede owner.
func (h *Handlers) AddUserToWorkspaceHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requestUID(w, r, "AddUserToWorkspaceHandler")
	if !ok {
		return
	}
	workspaceID, ok := pathID(w, r, "workspace_id")
	if !ok {
		return
	}
	callerRole, ok := h.requireRole(w, r, workspaceID, uid, models.RoleOwner, models.RoleAdmin)
	if !ok {
		return
	}

	var input models.MemberInput
	if !decodeJSON(w, r, &input, "AddUserToWorkspaceHandler") {
		return
	}
	role, err := models.ParseRole(string(input.Role))
	if err != nil {
		writeError(w, err, "AddUserToWorkspaceHandler")
		return
	}
	if role == models.RoleOwner && callerRole != models.RoleOwner {
		http.Error(w, "Only an owner can add another owner", http.StatusForbidden)
		return
	}

	member, err := models.AddMemberByEmail(r.Context(), h.db, workspaceID, input.Email, role)
	if err != nil {
		writeError(w, err, "AddUserToWorkspaceHandler")
		return
	}
	utilities.LogInfo("Usuário %s adicionado ao workspace %s como %s", member.UserID, workspaceID, member.Role)
	writeJSON(w, http.StatusCreated, member)
}

// UpdateMemberRoleHandler: owner ou admin; só um owner concede ou retira owner.
func (h *Handlers) UpdateMemberRoleHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requestUID(w, r, "UpdateMemberRoleHandler")
	if !ok {
		return
	}
	workspaceID, ok := pathID(w, r, "workspace_id")
	if !ok {
		return
	}
	callerRole, ok := h.requireRole(w, r, workspaceID, uid, models.RoleOwner, models.RoleAdmin)
	if !ok {
		return
	}
	target := mux.Vars(r)["user_id"]

	var input struct {
		Role models.Role `json:"role"`
	}
	if !decodeJSON(w, r, &input, "UpdateMemberRoleHandler") {
		return
	}
	if !input.Role.Valid() {
		writeError(w, models.InvalidInput("unknown role %q", input.Role), "UpdateMemberRoleHandler")
		return
	}

	if callerRole != models.RoleOwner {
		current, err := models.GetMemberRole(r.Context(), h.db, workspaceID, target)
		if err != nil {
			writeError(w, err, "UpdateMemberRoleHandler")
			return
		}
		if current == models.RoleOwner || input.Role == models.RoleOwner {
			http.Error(w, "Only an owner can grant or revoke the owner role", http.StatusForbidden)
			return
		}
	}

	member, err := models.UpdateMemberRole(r.Context(), h.db, workspaceID, target, input.Role)
	if err != nil {
		writeError(w, err, "UpdateMemberRoleHandler")
		return
	}
	writeJSON(w, http.StatusOK, member)
}

// RemoveUserFromWorkspaceHandler: o owner remove qualquer membro; os demais só a si mesmos.
func (h *Handlers) RemoveUserFromWorkspaceHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requestUID(w, r, "RemoveUserFromWorkspaceHandler")
	if !ok {
		return
	}
	workspaceID, ok := pathID(w, r, "workspace_id")
	if !ok {
		return
	}
	target := mux.Vars(r)["user_id"]

	if target == uid {
		if _, ok := h.requireRole(w, r, workspaceID, uid); !ok {
			return
		}
	} else if _, ok := h.requireRole(w, r, workspaceID, uid, models.RoleOwner); !ok {
		return
	}

	if err := models.RemoveMember(r.Context(), h.db, workspaceID, target); err != nil {
		writeError(w, err, "RemoveUserFromWorkspaceHandler")
		return
	}
	utilities.LogInfo("Usuário %s removido do workspace %s por %s", target, workspaceID, uid)
	writeMessage(w, http.StatusOK, "Member removed successfully")
}
