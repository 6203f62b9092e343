package firebase

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"

	"taskflow/models"
	"taskflow/utilities"
)

const (
	workspacesCollection = "workspaces"
	activityCollection   = "activity"
	deleteBatchSize      = 500 // limite de operações por batch do Firestore
)

// ActivityRecorder guarda o histórico de mudanças de cada workspace.
type ActivityRecorder interface {
	Record(ctx context.Context, e models.ChangeEvent) error
	PurgeWorkspace(ctx context.Context, workspaceID string) error
}

// ActivityLog grava em workspaces/{id}/activity no Firestore.
type ActivityLog struct {
	client *firestore.Client
}

func NewActivityLog(ctx context.Context, app *firebase.App) (*ActivityLog, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("erro ao obter cliente do Firestore: %w", err)
	}
	return &ActivityLog{client: client}, nil
}

func (a *ActivityLog) Close() error { return a.client.Close() }

// activityEntry monta o documento; RESYNC e eventos sem workspace não são registrados.
func activityEntry(e models.ChangeEvent) (map[string]interface{}, bool) {
	if e.Type == models.EventResync || e.WorkspaceID == "" {
		return nil, false
	}
	entry := map[string]interface{}{
		"table":            e.Table,
		"type":             string(e.Type),
		"record_id":        e.RecordID,
		"commit_timestamp": e.CommitTimestamp,
		"recorded_at":      firestore.ServerTimestamp,
	}
	switch e.Table {
	case models.TableTasks:
		if t, err := models.DecodeNew[models.Task](e); err == nil {
			entry["title"] = t.Title
			entry["status"] = string(t.Status)
		} else if t, err := models.DecodeOld[models.Task](e); err == nil {
			entry["title"] = t.Title
		}
	case models.TableMembers:
		if m, err := models.DecodeNew[models.Member](e); err == nil {
			entry["user_id"] = m.UserID
			entry["role"] = string(m.Role)
		} else if m, err := models.DecodeOld[models.Member](e); err == nil {
			entry["user_id"] = m.UserID
		}
	case models.TableWorkspaces:
		if w, err := models.DecodeNew[models.Workspace](e); err == nil {
			entry["name"] = w.Name
		}
	}
	return entry, true
}

func (a *ActivityLog) Record(ctx context.Context, e models.ChangeEvent) error {
	entry, ok := activityEntry(e)
	if !ok {
		return nil
	}
	_, _, err := a.client.Collection(workspacesCollection).Doc(e.WorkspaceID).
		Collection(activityCollection).Add(ctx, entry)
	if err != nil {
		return fmt.Errorf("erro ao registrar atividade do workspace %s: %w", e.WorkspaceID, err)
	}
	return nil
}

// PurgeWorkspace remove a subcoleção de atividade e o documento do workspace.
// O Firestore não apaga subcoleções junto com o documento pai.
func (a *ActivityLog) PurgeWorkspace(ctx context.Context, workspaceID string) error {
	workspaceRef := a.client.Collection(workspacesCollection).Doc(workspaceID)
	activityRef := workspaceRef.Collection(activityCollection)

	total := 0
	for {
		iter := activityRef.Limit(deleteBatchSize).Documents(ctx)
		batch := a.client.Batch()
		n := 0
		for {
			doc, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				iter.Stop()
				return fmt.Errorf("erro ao iterar atividade do workspace %s: %w", workspaceID, err)
			}
			batch.Delete(doc.Ref)
			n++
		}
		iter.Stop()

		if n == 0 {
			break
		}
		if _, err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("erro ao deletar batch de atividade do workspace %s: %w", workspaceID, err)
		}
		total += n
	}

	if _, err := workspaceRef.Delete(ctx); err != nil {
		return fmt.Errorf("erro ao deletar documento do workspace %s do Firestore: %w", workspaceID, err)
	}
	utilities.LogDebug("Atividade do workspace %s removida do Firestore (%d documentos)", workspaceID, total)
	return nil
}

// NopActivity é usado quando ACTIVITY_LOG_ENABLED está desligado.
type NopActivity struct{}

func (NopActivity) Record(context.Context, models.ChangeEvent) error { return nil }
func (NopActivity) PurgeWorkspace(context.Context, string) error     { return nil }

// ActivityQueue grava em segundo plano para que o relay de eventos não espere o Firestore.
// A limpeza de um workspace removido passa pela mesma fila, depois dos eventos
// já enfileirados; os que chegam depois dela são ignorados.
type ActivityQueue struct {
	rec     ActivityRecorder
	ch      chan models.ChangeEvent
	timeout time.Duration
	deleted map[string]struct{} // só Run acessa
}

func NewActivityQueue(rec ActivityRecorder, size int) *ActivityQueue {
	return &ActivityQueue{
		rec:     rec,
		ch:      make(chan models.ChangeEvent, size),
		timeout: 10 * time.Second,
		deleted: make(map[string]struct{}),
	}
}

// Enqueue nunca bloqueia; com a fila cheia o evento é descartado.
func (q *ActivityQueue) Enqueue(e models.ChangeEvent) {
	select {
	case q.ch <- e:
	default:
		utilities.LogWarn("fila de atividade cheia, evento %s/%s descartado", e.Table, e.RecordID)
	}
}

// PurgeWorkspace agenda a limpeza do workspace. Ao contrário de Enqueue,
// espera por espaço na fila até ctx terminar.
func (q *ActivityQueue) PurgeWorkspace(ctx context.Context, workspaceID string) error {
	e := models.ChangeEvent{
		Table:       models.TableWorkspaces,
		Type:        models.EventDelete,
		WorkspaceID: workspaceID,
		RecordID:    workspaceID,
	}
	select {
	case q.ch <- e:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("limpeza do workspace %s não agendada: %w", workspaceID, ctx.Err())
	}
}

func (q *ActivityQueue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-q.ch:
			q.process(ctx, e)
		}
	}
}

func (q *ActivityQueue) process(ctx context.Context, e models.ChangeEvent) {
	if _, gone := q.deleted[e.WorkspaceID]; gone {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	if e.Table == models.TableWorkspaces && e.Type == models.EventDelete && e.WorkspaceID != "" {
		q.deleted[e.WorkspaceID] = struct{}{}
		if err := q.rec.PurgeWorkspace(opCtx, e.WorkspaceID); err != nil {
			utilities.LogError(err, "ActivityQueue: limpeza do workspace "+e.WorkspaceID)
		}
		return
	}
	if err := q.rec.Record(opCtx, e); err != nil {
		utilities.LogError(err, "ActivityQueue")
	}
}
