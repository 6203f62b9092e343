package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"taskflow/firebase"
	"taskflow/models"
	"taskflow/realtime"
	"taskflow/utilities"

	"github.com/gorilla/mux"
)

// TokenVerifier valida ID tokens do Firebase.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebase.Identity, error)
}

// AuthProvider é a parte do Admin SDK usada pelos handlers.
type AuthProvider interface {
	TokenVerifier
	CreateUser(ctx context.Context, email, password, displayName string) (*firebase.Identity, error)
	DeleteUser(ctx context.Context, uid string) error
	RevokeRefreshTokens(ctx context.Context, uid string) error
	CustomToken(ctx context.Context, uid string) (string, error)
}

// PasswordSignIn faz login por email e senha.
type PasswordSignIn interface {
	SignInWithPassword(ctx context.Context, email, password string) (*firebase.SignInResult, error)
}

// ActivityPurger apaga o histórico de atividade de um workspace removido.
type ActivityPurger interface {
	PurgeWorkspace(ctx context.Context, workspaceID string) error
}

// Handlers reúne as dependências das rotas HTTP.
type Handlers struct {
	db       *sql.DB
	auth     AuthProvider
	signIn   PasswordSignIn
	hub      *realtime.Hub
	activity ActivityPurger
}

func New(db *sql.DB, auth AuthProvider, signIn PasswordSignIn, hub *realtime.Hub, activity ActivityPurger) *Handlers {
	if activity == nil {
		activity = firebase.NopActivity{}
	}
	return &Handlers{db: db, auth: auth, signIn: signIn, hub: hub, activity: activity}
}

type contextKey string

const userUIDKey contextKey = "userUID"

func withUID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, userUIDKey, uid)
}

// UIDFromContext devolve o UID colocado pelo AuthMiddleware.
func UIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(userUIDKey).(string)
	return uid, ok && uid != ""
}

// requestUID responde 401 quando o UID não está no contexto.
func requestUID(w http.ResponseWriter, r *http.Request, context string) (string, bool) {
	uid, ok := UIDFromContext(r.Context())
	if !ok {
		utilities.LogError(nil, context+": UID não encontrado no contexto")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}
	return uid, ok
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	// Navegadores não enviam headers no upgrade do websocket.
	return r.URL.Query().Get("access_token")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utilities.LogError(err, "erro ao escrever resposta JSON")
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, context string) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utilities.LogDebug("%s: JSON inválido: %v", context, err)
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return false
	}
	return true
}

// statusFor traduz os erros sentinela dos models em status HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNotMember), errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrAlreadyMember), errors.Is(err, models.ErrLastOwner), errors.Is(err, models.ErrUserExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError responde com texto puro. Erros 500 não expõem detalhes.
func writeError(w http.ResponseWriter, err error, context string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		utilities.LogError(err, context)
		http.Error(w, "Internal server error", status)
		return
	}
	utilities.LogDebug("%s: %v", context, err)
	http.Error(w, err.Error(), status)
}

// pathID lê e valida um UUID das variáveis da rota.
func pathID(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	id, err := models.ParseID(strings.TrimSuffix(key, "_id"), mux.Vars(r)[key])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return id, true
}

// requireRole carrega o papel do usuário no workspace e responde 403 quando
// ele não é membro ou não tem um dos papéis pedidos (nenhum = qualquer membro).
func (h *Handlers) requireRole(w http.ResponseWriter, r *http.Request, workspaceID, uid string, allowed ...models.Role) (models.Role, bool) {
	role, err := models.GetMemberRole(r.Context(), h.db, workspaceID, uid)
	if err != nil {
		writeError(w, err, "requireRole")
		return "", false
	}
	if role == "" {
		utilities.LogDebug("Usuário %s não é membro do workspace %s", uid, workspaceID)
		http.Error(w, models.ErrNotMember.Error(), http.StatusForbidden)
		return "", false
	}
	if len(allowed) == 0 {
		return role, true
	}
	for _, a := range allowed {
		if role == a {
			return role, true
		}
	}
	utilities.LogDebug("Usuário %s (%s) sem permissão no workspace %s", uid, role, workspaceID)
	http.Error(w, "You do not have permission to perform this action", http.StatusForbidden)
	return "", false
}
