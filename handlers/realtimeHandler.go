package handlers

import (
	"net/http"

	"taskflow/realtime"
)

// RealtimeHandler abre o feed de mudanças do workspace por websocket.
// A inscrição é feita antes do upgrade para que nenhum evento se perca entre os dois.
func (h *Handlers) RealtimeHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requestUID(w, r, "RealtimeHandler")
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

	realtime.ServeWS(w, r, h.hub.Subscribe(workspaceID), uid)
}

// HealthHandler verifica a conexão com o banco.
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		writeError(w, err, "HealthHandler")
		return
	}
	writeMessage(w, http.StatusOK, "ok")
}
