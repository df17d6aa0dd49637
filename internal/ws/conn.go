package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// Conn is one websocket connection of an authenticated user. Writes are
// serialized: gorilla allows a single concurrent writer per connection.
type Conn struct {
	ID     string
	UserID string

	ws *websocket.Conn
	mu sync.Mutex
}

// NewConn wraps an upgraded websocket connection.
func NewConn(ws *websocket.Conn, userID string) *Conn {
	return &Conn{ID: newConnID(), UserID: userID, ws: ws}
}

// WriteRaw sends a pre-encoded payload as one text frame.
func (c *Conn) WriteRaw(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// WriteJSON encodes v and sends it as one text frame.
func (c *Conn) WriteJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.WriteRaw(payload)
}

// ReadMessage blocks for the next frame from the client.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, payload, err := c.ws.ReadMessage()
	return payload, err
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.ws.Close()
}
