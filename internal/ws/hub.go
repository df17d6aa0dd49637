package ws

import (
	"log"
	"sync"
)

// Hub tracks the websocket connections held by this process, keyed by user.
// A user may hold several connections (multiple devices or tabs); pushes go
// to all of them.
type Hub struct {
	mu    sync.RWMutex
	users map[string]map[string]*Conn
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{users: make(map[string]map[string]*Conn)}
}

// Add registers a connection under its user.
func (h *Hub) Add(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.users[conn.UserID]
	if !ok {
		conns = make(map[string]*Conn)
		h.users[conn.UserID] = conns
	}
	conns[conn.ID] = conn
}

// Remove drops a connection, clearing the user entry when it was the last.
func (h *Hub) Remove(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.users[conn.UserID]
	if !ok {
		return
	}
	delete(conns, conn.ID)
	if len(conns) == 0 {
		delete(h.users, conn.UserID)
	}
}

// Push writes the payload to every local connection of the user. Write
// failures are logged and skipped; dead connections clean themselves up
// when their read loop exits.
func (h *Hub) Push(userID string, payload []byte) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.users[userID]))
	for _, conn := range h.users[userID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteRaw(payload); err != nil {
			log.Printf("ws: push to %s conn %s: %v", userID, conn.ID, err)
		}
	}
}

// ConnCount reports how many local connections the user holds.
func (h *Hub) ConnCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}
