// Package eventbus is the client side of the realtime event stream. A Mux
// drives one WebSocket connection, multiplexes any number of topic
// subscriptions over it, and resubscribes transparently after reconnects.
package eventbus

import (
	"context"
	"encoding/json"

	"trip-dispatch/internal/general/contracts"

	"github.com/gorilla/websocket"
)

// Conn is one established frame stream.
type Conn interface {
	ReadFrame() (contracts.Frame, error)
	WriteFrame(contracts.Frame) error
	Close() error
}

// Transport establishes connections. Injectable so the mux is testable
// without a server.
type Transport interface {
	Dial(ctx context.Context) (Conn, error)
}

// WSTransport dials a real WebSocket endpoint.
type WSTransport struct {
	URL string
}

func (t *WSTransport) Dial(ctx context.Context) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.URL, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadFrame() (contracts.Frame, error) {
	var frame contracts.Frame
	_, payload, err := c.conn.ReadMessage()
	if err != nil {
		return frame, err
	}
	err = json.Unmarshal(payload, &frame)
	return frame, err
}

func (c *wsConn) WriteFrame(frame contracts.Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
