package handlers

import (
	"net/http"
	"strings"

	"taskflow/firebase"
	"taskflow/models"
	"taskflow/utilities"

	"github.com/gorilla/mux"
)

// SocialLoginInput é o corpo de /auth/finalize-login.
type SocialLoginInput struct {
	IDToken string `json:"idToken"`
}

// writeAuthError usa a mensagem amigável quando o erro veio do provedor de identidade.
func writeAuthError(w http.ResponseWriter, err error, context string) {
	if code := firebase.AuthErrorCode(err); code != "" {
		msg, status := firebase.AuthErrorMessage(code)
		utilities.LogDebug("%s: %s", context, code)
		http.Error(w, msg, status)
		return
	}
	writeError(w, err, context)
}

// RegisterHandler cria o usuário no Firebase e no Postgres.
// Se a criação local falhar, o usuário do Firebase é removido.
func (h *Handlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	utilities.LogDebug("Iniciando registro de novo usuário")

	var creds models.Credentials
	if !decodeJSON(w, r, &creds, "RegisterHandler") {
		return
	}
	if err := creds.Validate(); err != nil {
		writeError(w, err, "RegisterHandler")
		return
	}

	ctx := r.Context()
	identity, err := h.auth.CreateUser(ctx, creds.Email, creds.Password, creds.DisplayName)
	if err != nil {
		writeAuthError(w, err, "RegisterHandler: erro ao criar usuário no Firebase")
		return
	}

	user, err := models.EnsureUser(ctx, h.db, identity.UID, creds.Email, creds.DisplayName)
	if err != nil {
		utilities.LogError(err, "RegisterHandler: falha ao salvar usuário "+identity.UID)
		if delErr := h.auth.DeleteUser(ctx, identity.UID); delErr != nil {
			utilities.LogError(delErr, "RegisterHandler: falha ao reverter criação no Firebase UID: "+identity.UID)
		} else {
			utilities.LogInfo("Usuário removido do Firebase (rollback): %s", identity.UID)
		}
		writeError(w, err, "RegisterHandler")
		return
	}

	customToken, err := h.auth.CustomToken(ctx, user.ID)
	if err != nil {
		utilities.LogError(err, "RegisterHandler: erro ao gerar custom token")
		http.Error(w, "Failed to generate authentication token", http.StatusInternalServerError)
		return
	}

	utilities.LogInfo("Usuário registrado com sucesso: %s", user.Email)
	writeJSON(w, http.StatusCreated, models.AuthResponse{
		Message:     "User created successfully and ready to sign in",
		User:        user,
		CustomToken: customToken,
	})
}

// LoginHandler faz login por email e senha e garante o usuário local.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if !decodeJSON(w, r, &creds, "LoginHandler") {
		return
	}
	if err := creds.Validate(); err != nil {
		writeError(w, err, "LoginHandler")
		return
	}

	res, err := h.signIn.SignInWithPassword(r.Context(), creds.Email, creds.Password)
	if err != nil {
		writeAuthError(w, err, "LoginHandler")
		return
	}

	user, err := models.EnsureUser(r.Context(), h.db, res.UID, res.Email, res.DisplayName)
	if err != nil {
		writeError(w, err, "LoginHandler: falha ao sincronizar usuário")
		return
	}

	utilities.LogInfo("Login efetuado para UID: %s", user.ID)
	writeJSON(w, http.StatusOK, models.AuthResponse{
		User:         user,
		IDToken:      res.IDToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    res.ExpiresAt,
	})
}

// FinalizeFirebaseLoginHandler processa um ID Token do Firebase (de login social ou outro)
// para verificar o usuário e sincronizá-lo com o banco de dados local.
func (h *Handlers) FinalizeFirebaseLoginHandler(w http.ResponseWriter, r *http.Request) {
	var input SocialLoginInput
	if !decodeJSON(w, r, &input, "FinalizeFirebaseLoginHandler") {
		return
	}
	if strings.TrimSpace(input.IDToken) == "" {
		http.Error(w, "ID Token is required", http.StatusBadRequest)
		return
	}

	identity, err := h.auth.VerifyIDToken(r.Context(), input.IDToken)
	if err != nil {
		utilities.LogError(err, "Falha ao verificar ID Token do Firebase")
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	user, err := models.EnsureUser(r.Context(), h.db, identity.UID, identity.Email, identity.DisplayName)
	if err != nil {
		writeError(w, err, "FinalizeFirebaseLoginHandler: erro ao sincronizar usuário")
		return
	}

	utilities.LogInfo("Usuário %s sincronizado com o banco de dados local", user.ID)
	writeJSON(w, http.StatusOK, models.AuthResponse{
		Message: "Login finalized and user synchronized",
		User:    user,
	})
}

func (h *Handlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requestUID(w, r, "LogoutHandler")
	if !ok {
		return
	}
	if err := h.auth.RevokeRefreshTokens(r.Context(), uid); err != nil {
		utilities.LogError(err, "Erro ao revogar tokens")
		http.Error(w, "Failed to log out", http.StatusInternalServerError)
		return
	}
	utilities.LogInfo("Tokens revogados para UID: %s", uid)
	writeMessage(w, http.StatusOK, "Logged out")
}

// UserHandler retorna informações do usuário atual
func (h *Handlers) UserHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requestUID(w, r, "UserHandler")
	if !ok {
		return
	}
	user, err := models.GetUserByUID(r.Context(), h.db, uid)
	if err != nil {
		writeError(w, err, "UserHandler")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateUserHandler atualiza o nome de exibição do usuário atual
func (h *Handlers) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requestUID(w, r, "UpdateUserHandler")
	if !ok {
		return
	}
	var input struct {
		DisplayName string `json:"display_name"`
	}
	if !decodeJSON(w, r, &input, "UpdateUserHandler") {
		return
	}
	user, err := models.UpdateDisplayName(r.Context(), h.db, uid, input.DisplayName)
	if err != nil {
		writeError(w, err, "UpdateUserHandler")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DeleteUserHandler remove a conta do usuário atual, localmente e no Firebase.
func (h *Handlers) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requestUID(w, r, "DeleteUserHandler")
	if !ok {
		return
	}
	if err := models.DeleteUser(r.Context(), h.db, uid); err != nil {
		writeError(w, err, "DeleteUserHandler")
		return
	}
	if err := h.auth.DeleteUser(r.Context(), uid); err != nil {
		writeAuthError(w, err, "DeleteUserHandler: usuário local removido mas não no Firebase")
		return
	}
	utilities.LogInfo("Conta removida: %s", uid)
	writeMessage(w, http.StatusOK, "Account deleted")
}

func (h *Handlers) GetAllUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := models.ListUsers(r.Context(), h.db)
	if err != nil {
		writeError(w, err, "GetAllUsersHandler")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// GetUserHandler retorna informações de um usuário específico
func (h *Handlers) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	if userID == "" {
		http.Error(w, "User ID is required in path", http.StatusBadRequest)
		return
	}
	user, err := models.GetUserByUID(r.Context(), h.db, userID)
	if err != nil {
		writeError(w, err, "GetUserHandler")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ListUserWorkspacesHandler lista os workspaces do usuário com busca e "carregar mais".
func (h *Handlers) ListUserWorkspacesHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requestUID(w, r, "ListUserWorkspacesHandler")
	if !ok {
		return
	}
	filter, err := models.WorkspaceFilterFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, err, "ListUserWorkspacesHandler")
		return
	}
	list, err := models.ListUserWorkspaces(r.Context(), h.db, uid)
	if err != nil {
		writeError(w, err, "ListUserWorkspacesHandler")
		return
	}
	writeJSON(w, http.StatusOK, models.FilterWorkspaces(list, filter))
}
