package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"trip-dispatch/internal/general/contracts"

	"github.com/gorilla/websocket"
)

// wsWriteClose sends a close control frame with the given code and reason.
func (hub *Hub) wsWriteClose(conn *websocket.Conn, code int, reason string) {
	mu := hub.lockOf(conn)
	mu.Lock()
	defer mu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(wsCloseAckWindow),
	)
	hub.writeLocks.Delete(conn)
}

// writeFrame marshals a frame and writes a single TextMessage under the
// per-connection writer lock.
func (hub *Hub) writeFrame(conn *websocket.Conn, frame contracts.Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	mu := hub.lockOf(conn)
	mu.Lock()
	defer mu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// lockOf returns the mutex for a specific connection
func (hub *Hub) lockOf(conn *websocket.Conn) *sync.Mutex {
	if v, ok := hub.writeLocks.Load(conn); ok {
		if mu, ok := v.(*sync.Mutex); ok && mu != nil {
			return mu
		}
	}
	mu := &sync.Mutex{}
	actual, _ := hub.writeLocks.LoadOrStore(conn, mu)
	return actual.(*sync.Mutex)
}
