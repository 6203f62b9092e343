package realtime

import (
	"sync"

	"taskflow/models"
	"taskflow/utilities"
)

const DefaultBufferSize = 64

// Subscription recebe os eventos de um workspace. C é fechado quando a
// inscrição termina, seja por Unsubscribe, Close do hub ou atraso do leitor.
type Subscription struct {
	WorkspaceID string
	C           <-chan models.ChangeEvent

	ch     chan models.ChangeEvent
	hub    *Hub
	closed bool
}

// Hub distribui os eventos do ChangeFeed para as inscrições de cada workspace.
type Hub struct {
	mu         sync.Mutex
	subs       map[string]map[*Subscription]struct{}
	bufferSize int
	closed     bool
}

func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{subs: make(map[string]map[*Subscription]struct{}), bufferSize: bufferSize}
}

func (h *Hub) Subscribe(workspaceID string) *Subscription {
	ch := make(chan models.ChangeEvent, h.bufferSize)
	s := &Subscription{WorkspaceID: workspaceID, C: ch, ch: ch, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.closed = true
		close(ch)
		return s
	}
	set, ok := h.subs[workspaceID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[workspaceID] = set
	}
	set[s] = struct{}{}
	return s
}

// Unsubscribe pode ser chamado mais de uma vez.
func (s *Subscription) Unsubscribe() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.remove(s)
}

// remove exige h.mu.
func (h *Hub) remove(s *Subscription) {
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
	if set, ok := h.subs[s.WorkspaceID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.WorkspaceID)
		}
	}
}

// Publish nunca bloqueia. RESYNC vai para todas as inscrições; os demais
// eventos só para as do workspace do evento.
func (h *Hub) Publish(e models.ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	if e.Type == models.EventResync && e.WorkspaceID == "" {
		for ws, set := range h.subs {
			ev := models.ResyncEvent(ws, e.CommitTimestamp)
			for s := range set {
				h.deliver(s, ev)
			}
		}
		return
	}
	for s := range h.subs[e.WorkspaceID] {
		h.deliver(s, e)
	}
}

func (h *Hub) deliver(s *Subscription, e models.ChangeEvent) {
	select {
	case s.ch <- e:
	default:
		utilities.LogWarn("inscrição no workspace %s atrasada, encerrando", s.WorkspaceID)
		h.remove(s)
	}
}

// Subscribers devolve quantas inscrições existem para o workspace.
func (h *Hub) Subscribers(workspaceID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[workspaceID])
}

// Close encerra todas as inscrições; publicações posteriores são ignoradas.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, set := range h.subs {
		for s := range set {
			h.remove(s)
		}
	}
	h.subs = make(map[string]map[*Subscription]struct{})
}
