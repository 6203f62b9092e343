package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
	// EventResync avisa que eventos podem ter sido perdidos e o estado deve ser recarregado.
	EventResync EventType = "RESYNC"
)

const (
	TableWorkspaces = "workspaces"
	TableMembers    = "workspace_members"
	TableTasks      = "tasks"
)

// ChangeEvent é a notificação de mudança de uma linha, como sai do trigger no Postgres.
type ChangeEvent struct {
	Table           string          `json:"table"`
	Type            EventType       `json:"type"`
	WorkspaceID     string          `json:"workspace_id,omitempty"`
	RecordID        string          `json:"record_id,omitempty"`
	New             json.RawMessage `json:"new,omitempty"`
	Old             json.RawMessage `json:"old,omitempty"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
	// Truncated indica payload grande demais para o NOTIFY; só o RecordID veio.
	Truncated bool `json:"truncated,omitempty"`
}

// ResyncEvent é emitido depois de uma reconexão. WorkspaceID vazio vale para todos.
func ResyncEvent(workspaceID string, at time.Time) ChangeEvent {
	return ChangeEvent{Type: EventResync, WorkspaceID: workspaceID, CommitTimestamp: at}
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func (e ChangeEvent) HasNew() bool { return present(e.New) }

func (e ChangeEvent) HasOld() bool { return present(e.Old) }

// Normalize troca "null" por ausente em New e Old.
func (e *ChangeEvent) Normalize() {
	if !e.HasNew() {
		e.New = nil
	}
	if !e.HasOld() {
		e.Old = nil
	}
}

func DecodeNew[T any](e ChangeEvent) (T, error) {
	var v T
	if !e.HasNew() {
		return v, fmt.Errorf("%s %s event has no new record: %w", e.Table, e.Type, ErrNotFound)
	}
	if err := json.Unmarshal(e.New, &v); err != nil {
		return v, fmt.Errorf("decode new %s record: %w", e.Table, err)
	}
	return v, nil
}

func DecodeOld[T any](e ChangeEvent) (T, error) {
	var v T
	if !e.HasOld() {
		return v, fmt.Errorf("%s %s event has no old record: %w", e.Table, e.Type, ErrNotFound)
	}
	if err := json.Unmarshal(e.Old, &v); err != nil {
		return v, fmt.Errorf("decode old %s record: %w", e.Table, err)
	}
	return v, nil
}

// RemovesMember diz se o evento é a remoção da membresia de uid.
func (e ChangeEvent) RemovesMember(uid string) bool {
	if e.Table != TableMembers || e.Type != EventDelete {
		return false
	}
	m, err := DecodeOld[Member](e)
	return err == nil && m.UserID == uid
}
