package rest

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AndrewDeWitt/grimlog/internal/errors"
	"github.com/AndrewDeWitt/grimlog/internal/game/domain/event"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API serves first-party clients only; origin enforcement happens
	// at the edge.
	CheckOrigin: func(*http.Request) bool { return true },
}

// subscriber wraps a websocket connection with a write lock. The websocket
// library allows at most one concurrent writer per connection, and
// broadcasts can arrive from multiple request goroutines at once.
type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) writeJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(v)
}

// Hub fans appended timeline events out to websocket subscribers, keyed by
// session.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*websocket.Conn]*subscriber
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*websocket.Conn]*subscriber)}
}

// Broadcast sends each event to every subscriber of the session. Dead
// connections are dropped on write failure.
func (h *Hub) Broadcast(sessionID string, events []event.Event) {
	if len(events) == 0 {
		return
	}
	frames := make([]eventDTO, 0, len(events))
	for _, evt := range events {
		frames = append(frames, toEventDTO(evt))
	}

	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs[sessionID]))
	for _, sub := range h.subs[sessionID] {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.writeJSON(frames); err != nil {
			h.remove(sessionID, sub.conn)
			sub.conn.Close()
		}
	}
}

func (h *Hub) add(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*websocket.Conn]*subscriber)
	}
	h.subs[sessionID][conn] = &subscriber{conn: conn}
}

func (h *Hub) remove(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[sessionID], conn)
	if len(h.subs[sessionID]) == 0 {
		delete(h.subs, sessionID)
	}
}

// handleStream upgrades the request and subscribes it to the session's
// timeline until the client disconnects.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	if _, err := h.service.GetSession(r.Context(), sessionID); err != nil {
		errors.WriteHTTP(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("timeline stream upgrade: %v", err)
		return
	}
	h.hub.add(sessionID, conn)
	defer func() {
		h.hub.remove(sessionID, conn)
		conn.Close()
	}()

	// The stream is write-only; reads only detect the client going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
