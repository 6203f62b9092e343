package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Routes registra todas as rotas da API. Só register, login, finalize-login
// e healthz dispensam o token.
func (h *Handlers) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(LoggingMiddleware)
	auth := h.AuthMiddleware

	r.HandleFunc("/healthz", h.HealthHandler).Methods(http.MethodGet)

	// --- Rotas de Autenticação e Públicas ---
	r.HandleFunc("/auth/register", h.RegisterHandler).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.LoginHandler).Methods(http.MethodPost)
	r.HandleFunc("/auth/finalize-login", h.FinalizeFirebaseLoginHandler).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", auth(h.LogoutHandler)).Methods(http.MethodPost)

	// --- Rotas de Usuário ---
	r.HandleFunc("/user/info", auth(h.UserHandler)).Methods(http.MethodGet)
	r.HandleFunc("/user/update", auth(h.UpdateUserHandler)).Methods(http.MethodPut)
	r.HandleFunc("/user/delete", auth(h.DeleteUserHandler)).Methods(http.MethodDelete)
	r.HandleFunc("/user/my-workspaces/list", auth(h.ListUserWorkspacesHandler)).Methods(http.MethodGet)
	r.HandleFunc("/users/list", auth(h.GetAllUsersHandler)).Methods(http.MethodGet)
	r.HandleFunc("/users/info/{id}", auth(h.GetUserHandler)).Methods(http.MethodGet)

	// --- Rotas de Workspace ---
	r.HandleFunc("/workspace/create", auth(h.CreateWorkspaceHandler)).Methods(http.MethodPost)
	r.HandleFunc("/workspace/info/{workspace_id}", auth(h.GetWorkspaceInfoHandler)).Methods(http.MethodGet)
	r.HandleFunc("/workspace/update/{workspace_id}", auth(h.UpdateWorkspaceHandler)).Methods(http.MethodPut)
	r.HandleFunc("/workspace/delete/{workspace_id}", auth(h.DeleteWorkspaceHandler)).Methods(http.MethodDelete)
	r.HandleFunc("/workspace/{workspace_id}/permissions", auth(h.WorkspacePermissionsHandler)).Methods(http.MethodGet)
	r.HandleFunc("/workspace/{workspace_id}/realtime", auth(h.RealtimeHandler)).Methods(http.MethodGet)

	// --- Rotas de Membros ---
	r.HandleFunc("/workspace/{workspace_id}/members/list", auth(h.ListWorkspaceMembersHandler)).Methods(http.MethodGet)
	r.HandleFunc("/workspace/{workspace_id}/members/role/{user_id}", auth(h.GetMemberRoleHandler)).Methods(http.MethodGet)
	r.HandleFunc("/workspace/{workspace_id}/members/role/{user_id}", auth(h.UpdateMemberRoleHandler)).Methods(http.MethodPut)
	r.HandleFunc("/workspace/{workspace_id}/members/add", auth(h.AddUserToWorkspaceHandler)).Methods(http.MethodPost)
	r.HandleFunc("/workspace/{workspace_id}/members/remove/{user_id}", auth(h.RemoveUserFromWorkspaceHandler)).Methods(http.MethodDelete)

	// --- Rotas de Tarefas ---
	r.HandleFunc("/workspace/{workspace_id}/task/create", auth(h.CreateTaskHandler)).Methods(http.MethodPost)
	r.HandleFunc("/workspace/{workspace_id}/task/list", auth(h.ListTasksHandler)).Methods(http.MethodGet)
	r.HandleFunc("/workspace/{workspace_id}/task/info/{task_id}", auth(h.GetTaskHandler)).Methods(http.MethodGet)
	r.HandleFunc("/workspace/{workspace_id}/task/update/{task_id}", auth(h.UpdateTaskHandler)).Methods(http.MethodPut)
	r.HandleFunc("/workspace/{workspace_id}/task/delete/{task_id}", auth(h.DeleteTaskHandler)).Methods(http.MethodDelete)

	return r
}
