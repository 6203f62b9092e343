package realtime

import (
	"net/http"
	"time"

	"taskflow/utilities"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// A origem já foi validada pelo CORS e o token pelo AuthMiddleware.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS transmite os eventos de sub como frames JSON até o cliente sair,
// a inscrição ser encerrada ou o próprio uid ser removido do workspace.
// A inscrição é sempre cancelada ao retornar.
func ServeWS(w http.ResponseWriter, r *http.Request, sub *Subscription, uid string) {
	defer sub.Unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		utilities.LogError(err, "ServeWS: upgrade falhou")
		return
	}
	defer conn.Close()

	utilities.WithFields(map[string]interface{}{
		"uid":       uid,
		"workspace": sub.WorkspaceID,
		"remote":    r.RemoteAddr,
	}).Debug("conectado ao feed de mudanças")

	done := make(chan struct{})
	go readPump(conn, done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			utilities.LogDebug("Usuário %s saiu do feed do workspace %s", uid, sub.WorkspaceID)
			return

		case e, ok := <-sub.C:
			if !ok {
				closeConn(conn, websocket.CloseGoingAway, "subscription closed")
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				utilities.LogError(err, "ServeWS: erro ao enviar evento")
				return
			}
			if e.RemovesMember(uid) {
				closeConn(conn, websocket.ClosePolicyViolation, "membership removed")
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump só consome pongs e frames de controle; o feed é unidirecional.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				utilities.LogDebug("feed encerrado pelo cliente: %v", err)
			}
			return
		}
	}
}

func closeConn(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
