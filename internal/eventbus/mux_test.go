package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"trip-dispatch/internal/general/contracts"
	"trip-dispatch/internal/general/logger"
)

// fakeConn is an in-memory frame stream driven by the test.
type fakeConn struct {
	toClient   chan contracts.Frame // frames the mux will read
	fromClient chan contracts.Frame // frames the mux wrote

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		toClient:   make(chan contracts.Frame, 16),
		fromClient: make(chan contracts.Frame, 16),
		closed:     make(chan struct{}),
	}
}

func (c *fakeConn) ReadFrame() (contracts.Frame, error) {
	select {
	case f := <-c.toClient:
		return f, nil
	case <-c.closed:
		return contracts.Frame{}, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteFrame(f contracts.Frame) error {
	select {
	case c.fromClient <- f:
		return nil
	case <-c.closed:
		return errors.New("connection closed")
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// expect reads the next client frame or fails the test.
func (c *fakeConn) expect(t *testing.T, frameType string) contracts.Frame {
	t.Helper()
	select {
	case f := <-c.fromClient:
		if f.Type != frameType {
			t.Fatalf("expected %s frame, got %s", frameType, f.Type)
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s frame", frameType)
		return contracts.Frame{}
	}
}

// fakeTransport hands out prepared connections in order.
type fakeTransport struct {
	mu    sync.Mutex
	conns []*fakeConn
}

func (tr *fakeTransport) Dial(ctx context.Context) (Conn, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.conns) == 0 {
		return nil, errors.New("no connection available")
	}
	conn := tr.conns[0]
	tr.conns = tr.conns[1:]
	return conn, nil
}

func TestMux_SubscribeAndReceive(t *testing.T) {
	conn := newFakeConn()
	mux := NewMux(&fakeTransport{conns: []*fakeConn{conn}}, "Bearer token", logger.New("test"))

	received := make(chan json.RawMessage, 1)
	if _, err := mux.Subscribe("trip:abc", func(p json.RawMessage) { received <- p }); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Run(ctx)

	auth := conn.expect(t, contracts.FrameAuth)
	if auth.Token != "Bearer token" {
		t.Fatalf("auth frame carries wrong token: %q", auth.Token)
	}
	conn.toClient <- contracts.Frame{Type: contracts.FrameAuthOK}

	sub := conn.expect(t, contracts.FrameSubscribe)
	if sub.Topic != "trip:abc" {
		t.Fatalf("expected topic trip:abc, got %q", sub.Topic)
	}

	conn.toClient <- contracts.Frame{
		Type:           contracts.FrameEvent,
		SubscriptionID: sub.SubscriptionID,
		Topic:          "trip:abc",
		Payload:        json.RawMessage(`{"status":"ACCEPTED"}`),
	}

	select {
	case p := <-received:
		if string(p) != `{"status":"ACCEPTED"}` {
			t.Fatalf("unexpected payload: %s", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not receive the event")
	}
}

func TestMux_RoutesBySubscriptionID(t *testing.T) {
	conn := newFakeConn()
	mux := NewMux(&fakeTransport{conns: []*fakeConn{conn}}, "Bearer token", logger.New("test"))

	gotA := make(chan json.RawMessage, 1)
	gotB := make(chan json.RawMessage, 1)
	if _, err := mux.Subscribe("trip:a", func(p json.RawMessage) { gotA <- p }); err != nil {
		t.Fatal(err)
	}
	if _, err := mux.Subscribe("trip:b", func(p json.RawMessage) { gotB <- p }); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Run(ctx)

	conn.expect(t, contracts.FrameAuth)
	conn.toClient <- contracts.Frame{Type: contracts.FrameAuthOK}

	subs := map[string]string{} // topic -> subscription id
	for range 2 {
		f := conn.expect(t, contracts.FrameSubscribe)
		subs[f.Topic] = f.SubscriptionID
	}

	conn.toClient <- contracts.Frame{
		Type:           contracts.FrameEvent,
		SubscriptionID: subs["trip:b"],
		Payload:        json.RawMessage(`"for-b"`),
	}

	select {
	case p := <-gotB:
		if string(p) != `"for-b"` {
			t.Fatalf("unexpected payload: %s", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription b did not receive its event")
	}

	select {
	case p := <-gotA:
		t.Fatalf("subscription a must not receive b's event, got %s", p)
	default:
	}
}

func TestMux_ResubscribesAfterReconnect(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	mux := NewMux(&fakeTransport{conns: []*fakeConn{first, second}}, "Bearer token", logger.New("test"))

	received := make(chan json.RawMessage, 1)
	if _, err := mux.Subscribe("trip:abc", func(p json.RawMessage) { received <- p }); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Run(ctx)

	first.expect(t, contracts.FrameAuth)
	first.toClient <- contracts.Frame{Type: contracts.FrameAuthOK}
	originalSub := first.expect(t, contracts.FrameSubscribe)

	// drop the connection; the mux must dial again and replay the
	// subscription under the same id
	first.Close()

	second.expect(t, contracts.FrameAuth)
	second.toClient <- contracts.Frame{Type: contracts.FrameAuthOK}
	replayed := second.expect(t, contracts.FrameSubscribe)

	if replayed.SubscriptionID != originalSub.SubscriptionID {
		t.Fatalf("replayed subscription id changed: %s -> %s", originalSub.SubscriptionID, replayed.SubscriptionID)
	}
	if replayed.Topic != "trip:abc" {
		t.Fatalf("replayed wrong topic: %q", replayed.Topic)
	}

	// events on the new connection still reach the original handler
	second.toClient <- contracts.Frame{
		Type:           contracts.FrameEvent,
		SubscriptionID: replayed.SubscriptionID,
		Payload:        json.RawMessage(`"after-reconnect"`),
	}
	select {
	case p := <-received:
		if string(p) != `"after-reconnect"` {
			t.Fatalf("unexpected payload: %s", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not survive the reconnect")
	}
}

func TestMux_UnsubscribeStopsDelivery(t *testing.T) {
	conn := newFakeConn()
	mux := NewMux(&fakeTransport{conns: []*fakeConn{conn}}, "Bearer token", logger.New("test"))

	received := make(chan json.RawMessage, 1)
	unsubscribe, err := mux.Subscribe("trip:abc", func(p json.RawMessage) { received <- p })
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Run(ctx)

	conn.expect(t, contracts.FrameAuth)
	conn.toClient <- contracts.Frame{Type: contracts.FrameAuthOK}
	sub := conn.expect(t, contracts.FrameSubscribe)

	unsubscribe()
	unsub := conn.expect(t, contracts.FrameUnsubscribe)
	if unsub.SubscriptionID != sub.SubscriptionID {
		t.Fatalf("unsubscribe names wrong id: %s", unsub.SubscriptionID)
	}

	// a late event for the dropped id is discarded
	conn.toClient <- contracts.Frame{
		Type:           contracts.FrameEvent,
		SubscriptionID: sub.SubscriptionID,
		Payload:        json.RawMessage(`"late"`),
	}

	select {
	case p := <-received:
		t.Fatalf("handler must not fire after unsubscribe, got %s", p)
	case <-time.After(100 * time.Millisecond):
	}
}
