package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taskflow/models"
	"taskflow/utilities"

	"github.com/lib/pq"
)

// ChangesChannel é o canal do NOTIFY usado pelo trigger taskflow_notify_change.
const ChangesChannel = "taskflow_changes"

const (
	minReconnectInterval = 2 * time.Second
	maxReconnectInterval = time.Minute
	defaultPingInterval  = 90 * time.Second
)

type notificationSource interface {
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// rowLoader relê uma linha quando o payload veio truncado.
type rowLoader func(ctx context.Context, table, id string) (interface{}, error)

// ChangeFeed transforma notificações do Postgres em models.ChangeEvent.
type ChangeFeed struct {
	src          notificationSource
	load         rowLoader
	pingInterval time.Duration
	now          func() time.Time
}

// ListenChanges abre um pq.Listener dedicado (fora do pool) no canal de mudanças.
func ListenChanges(db *sql.DB, dsn string) (*ChangeFeed, error) {
	l := pq.NewListener(dsn, minReconnectInterval, maxReconnectInterval, logListenerEvent)
	if err := l.Listen(ChangesChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("listen %s: %w", ChangesChannel, err)
	}
	utilities.LogInfo("Escutando mudanças no canal %s", ChangesChannel)
	return newChangeFeed(l, dbLoader(db)), nil
}

func newChangeFeed(src notificationSource, load rowLoader) *ChangeFeed {
	return &ChangeFeed{src: src, load: load, pingInterval: defaultPingInterval, now: time.Now}
}

func logListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		utilities.LogDebug("listener conectado")
	case pq.ListenerEventDisconnected:
		utilities.LogError(err, "listener desconectado")
	case pq.ListenerEventReconnected:
		utilities.LogInfo("listener reconectado")
	case pq.ListenerEventConnectionAttemptFailed:
		utilities.LogError(err, "falha ao reconectar o listener")
	}
}

func dbLoader(db *sql.DB) rowLoader {
	return func(ctx context.Context, table, id string) (interface{}, error) {
		switch table {
		case models.TableTasks:
			return models.GetTaskByID(ctx, db, id)
		case models.TableWorkspaces:
			return models.GetWorkspace(ctx, db, id)
		case models.TableMembers:
			return models.GetMemberByID(ctx, db, id)
		}
		return nil, fmt.Errorf("unknown table %q", table)
	}
}

// Run entrega os eventos a publish até o contexto ser cancelado.
// Depois de uma reconexão publica um RESYNC, pois notificações podem ter se perdido.
func (f *ChangeFeed) Run(ctx context.Context, publish func(models.ChangeEvent)) error {
	defer f.src.Close()

	ticker := time.NewTicker(f.pingInterval)
	defer ticker.Stop()

	notifications := f.src.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case n, ok := <-notifications:
			if !ok {
				return errors.New("change feed closed")
			}
			if n == nil {
				utilities.LogWarn("conexão do listener restabelecida, enviando RESYNC")
				publish(models.ResyncEvent("", f.now()))
				continue
			}
			e, err := f.decode(ctx, n.Extra)
			if err != nil {
				utilities.LogError(err, "ChangeFeed: notificação descartada")
				continue
			}
			if e != nil {
				publish(*e)
			}

		case <-ticker.C:
			if err := f.src.Ping(); err != nil {
				utilities.LogWarn("ping do listener falhou: %v", err)
			}
		}
	}
}

// decode devolve nil sem erro quando a linha sumiu antes de ser relida;
// o DELETE correspondente chega em seguida. Se a releitura falhar por outro
// motivo o evento sai truncado, só com RecordID.
func (f *ChangeFeed) decode(ctx context.Context, payload string) (*models.ChangeEvent, error) {
	var e models.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return nil, fmt.Errorf("payload inválido: %w", err)
	}
	e.Normalize()
	if !e.Truncated {
		return &e, nil
	}

	if e.Type == models.EventDelete {
		old, err := json.Marshal(map[string]string{"id": e.RecordID, "workspace_id": e.WorkspaceID})
		if err != nil {
			return nil, err
		}
		e.Old = old
		return &e, nil
	}

	row, err := f.load(ctx, e.Table, e.RecordID)
	if errors.Is(err, models.ErrNotFound) {
		utilities.LogDebug("linha %s/%s removida antes da releitura", e.Table, e.RecordID)
		return nil, nil
	}
	if err != nil {
		// segue truncado; o cliente relê a linha pela API
		utilities.LogError(err, fmt.Sprintf("ChangeFeed: reler %s/%s", e.Table, e.RecordID))
		return &e, nil
	}
	if e.New, err = json.Marshal(row); err != nil {
		return nil, err
	}
	return &e, nil
}
