package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
)

// registry maps topics to the connections subscribed to them. One connection
// may hold several subscriptions to the same topic under different ids; each
// delivery is tagged with the subscription id it belongs to.
type registry struct {
	mu sync.RWMutex

	// topic -> conn -> set of subscription ids
	topics map[string]map[*websocket.Conn]map[string]struct{}

	// conn -> subscription id -> topic (for unsubscribe and teardown)
	conns map[*websocket.Conn]map[string]string
}

func newRegistry() *registry {
	return &registry{
		topics: make(map[string]map[*websocket.Conn]map[string]struct{}),
		conns:  make(map[*websocket.Conn]map[string]string),
	}
}

// add registers a subscription. Re-adding the same (conn, id) is a no-op that
// keeps the latest topic, so a client retrying a subscribe is safe.
func (reg *registry) add(conn *websocket.Conn, subID, topic string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if old, ok := reg.conns[conn][subID]; ok && old != topic {
		reg.dropLocked(conn, subID, old)
	}

	if reg.conns[conn] == nil {
		reg.conns[conn] = make(map[string]string)
	}
	reg.conns[conn][subID] = topic

	if reg.topics[topic] == nil {
		reg.topics[topic] = make(map[*websocket.Conn]map[string]struct{})
	}
	if reg.topics[topic][conn] == nil {
		reg.topics[topic][conn] = make(map[string]struct{})
	}
	reg.topics[topic][conn][subID] = struct{}{}
}

// remove drops one subscription. Unknown ids are ignored.
func (reg *registry) remove(conn *websocket.Conn, subID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	topic, ok := reg.conns[conn][subID]
	if !ok {
		return
	}
	delete(reg.conns[conn], subID)
	if len(reg.conns[conn]) == 0 {
		delete(reg.conns, conn)
	}
	reg.dropLocked(conn, subID, topic)
}

// removeConn tears down every subscription held by a closing connection.
func (reg *registry) removeConn(conn *websocket.Conn) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for subID, topic := range reg.conns[conn] {
		reg.dropLocked(conn, subID, topic)
	}
	delete(reg.conns, conn)
}

func (reg *registry) dropLocked(conn *websocket.Conn, subID, topic string) {
	if subs, ok := reg.topics[topic][conn]; ok {
		delete(subs, subID)
		if len(subs) == 0 {
			delete(reg.topics[topic], conn)
		}
	}
	if len(reg.topics[topic]) == 0 {
		delete(reg.topics, topic)
	}
}

// subscription is a (conn, id) delivery target captured under the read lock.
type subscription struct {
	conn  *websocket.Conn
	subID string
}

// subscribers snapshots the delivery targets for a topic.
func (reg *registry) subscribers(topic string) []subscription {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	var out []subscription
	for conn, subs := range reg.topics[topic] {
		for subID := range subs {
			out = append(out, subscription{conn: conn, subID: subID})
		}
	}
	return out
}
