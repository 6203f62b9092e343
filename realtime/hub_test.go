package realtime

import (
	"testing"
	"time"

	"taskflow/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taskEvent(ws, id string) models.ChangeEvent {
	return models.ChangeEvent{Table: models.TableTasks, Type: models.EventInsert, WorkspaceID: ws, RecordID: id}
}

func TestHubRoutesByWorkspace(t *testing.T) {
	h := NewHub(4)
	a := h.Subscribe("ws-a")
	b := h.Subscribe("ws-b")

	h.Publish(taskEvent("ws-a", "t1"))

	require.Len(t, a.C, 1)
	assert.Equal(t, "t1", (<-a.C).RecordID)
	assert.Empty(t, b.C)
}

func TestHubResyncReachesEveryone(t *testing.T) {
	h := NewHub(4)
	a := h.Subscribe("ws-a")
	b := h.Subscribe("ws-b")
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	h.Publish(models.ResyncEvent("", at))

	ea := <-a.C
	eb := <-b.C
	assert.Equal(t, models.EventResync, ea.Type)
	assert.Equal(t, "ws-a", ea.WorkspaceID)
	assert.Equal(t, "ws-b", eb.WorkspaceID)
	assert.True(t, eb.CommitTimestamp.Equal(at))
}

func TestHubClosesSlowSubscriber(t *testing.T) {
	h := NewHub(1)
	slow := h.Subscribe("ws")
	fast := h.Subscribe("ws")

	h.Publish(taskEvent("ws", "t1"))
	<-fast.C
	h.Publish(taskEvent("ws", "t2"))

	<-slow.C
	_, ok := <-slow.C
	assert.False(t, ok, "slow subscriber should be closed")

	e, ok := <-fast.C
	require.True(t, ok)
	assert.Equal(t, "t2", e.RecordID)
	assert.Equal(t, 1, h.Subscribers("ws"))
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	h := NewHub(1)
	s := h.Subscribe("ws")
	s.Unsubscribe()
	s.Unsubscribe()

	_, ok := <-s.C
	assert.False(t, ok)
	assert.Zero(t, h.Subscribers("ws"))

	h.Publish(taskEvent("ws", "t1"))
}

func TestHubClose(t *testing.T) {
	h := NewHub(1)
	s := h.Subscribe("ws")
	h.Close()

	_, ok := <-s.C
	assert.False(t, ok)

	late := h.Subscribe("ws")
	_, ok = <-late.C
	assert.False(t, ok)
	late.Unsubscribe()
}
