package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"trip-dispatch/internal/general/contracts"
	"trip-dispatch/internal/general/logger"
)

// Handler receives event payloads for one subscription. Handlers must not
// block; long work belongs in the handler's own goroutine.
type Handler func(payload json.RawMessage)

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("eventbus: mux is closed")

type subscription struct {
	topic   string
	handler Handler
}

// Mux multiplexes topic subscriptions over a single authenticated
// connection. Subscriptions made while disconnected are queued and sent
// after the next successful auth; after a reconnect every live subscription
// is replayed with its original id, so handlers survive connection churn.
type Mux struct {
	transport Transport
	token     string // "Bearer <jwt>"
	logger    *logger.Logger

	nextID atomic.Uint64

	mu     sync.Mutex
	subs   map[string]*subscription
	conn   Conn
	authed bool
	closed bool
}

// NewMux builds a mux; call Run to connect.
func NewMux(transport Transport, token string, logger *logger.Logger) *Mux {
	return &Mux{
		transport: transport,
		token:     token,
		logger:    logger,
		subs:      make(map[string]*subscription),
	}
}

// Subscribe registers a handler for a topic and returns an unsubscribe
// function. The subscription takes effect immediately when connected, or on
// the next successful auth otherwise.
func (mux *Mux) Subscribe(topic string, handler Handler) (func(), error) {
	if topic == "" {
		return nil, errors.New("eventbus: topic is required")
	}
	if handler == nil {
		return nil, errors.New("eventbus: handler is required")
	}

	subID := fmt.Sprintf("sub-%d", mux.nextID.Add(1))

	mux.mu.Lock()
	if mux.closed {
		mux.mu.Unlock()
		return nil, ErrClosed
	}
	mux.subs[subID] = &subscription{topic: topic, handler: handler}
	conn, authed := mux.conn, mux.authed
	mux.mu.Unlock()

	if authed {
		_ = conn.WriteFrame(contracts.Frame{
			Type:           contracts.FrameSubscribe,
			SubscriptionID: subID,
			Topic:          topic,
		})
	}

	unsubscribe := func() {
		mux.mu.Lock()
		delete(mux.subs, subID)
		conn, authed := mux.conn, mux.authed
		mux.mu.Unlock()

		if authed {
			_ = conn.WriteFrame(contracts.Frame{
				Type:           contracts.FrameUnsubscribe,
				SubscriptionID: subID,
			})
		}
	}
	return unsubscribe, nil
}

// Run connects and serves frames until ctx is cancelled. Connection loss
// triggers reconnect with capped exponential backoff.
func (mux *Mux) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			mux.shutdown()
			return
		}

		err := mux.serveOnce(ctx)
		if ctx.Err() != nil {
			mux.shutdown()
			return
		}

		if err != nil {
			mux.logger.Debug(ctx, "eventbus_disconnected", "Connection lost, reconnecting", map[string]any{
				"error":      err.Error(),
				"backoff_ms": backoff.Milliseconds(),
			})
		}

		select {
		case <-ctx.Done():
			mux.shutdown()
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
		}
	}
}

// serveOnce dials, authenticates, resubscribes, and pumps frames until the
// connection drops.
func (mux *Mux) serveOnce(ctx context.Context) error {
	conn, err := mux.transport.Dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	// close the conn when ctx ends so the blocking read unblocks
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	if err := conn.WriteFrame(contracts.Frame{Type: contracts.FrameAuth, Token: mux.token}); err != nil {
		return err
	}

	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			mux.markDown()
			return err
		}

		switch frame.Type {
		case contracts.FrameAuthOK:
			mux.onAuthed(conn)

		case contracts.FrameAuthError:
			mux.markDown()
			return fmt.Errorf("eventbus: authentication rejected: %s", frame.Error)

		case contracts.FrameEvent:
			mux.dispatch(frame)

		case contracts.FrameSubscribed:
			// ack; nothing to do

		case contracts.FrameError:
			mux.logger.Debug(ctx, "eventbus_server_error", "Server reported an error frame", map[string]any{
				"subscription_id": frame.SubscriptionID,
				"error":           frame.Error,
			})
		}
	}
}

// onAuthed installs the live connection and replays every registered
// subscription with its original id.
func (mux *Mux) onAuthed(conn Conn) {
	mux.mu.Lock()
	mux.conn = conn
	mux.authed = true
	replay := make(map[string]string, len(mux.subs))
	for subID, sub := range mux.subs {
		replay[subID] = sub.topic
	}
	mux.mu.Unlock()

	for subID, topic := range replay {
		_ = conn.WriteFrame(contracts.Frame{
			Type:           contracts.FrameSubscribe,
			SubscriptionID: subID,
			Topic:          topic,
		})
	}
}

func (mux *Mux) dispatch(frame contracts.Frame) {
	mux.mu.Lock()
	sub, ok := mux.subs[frame.SubscriptionID]
	mux.mu.Unlock()
	if !ok {
		// late event for an unsubscribed id; drop
		return
	}
	sub.handler(frame.Payload)
}

func (mux *Mux) markDown() {
	mux.mu.Lock()
	mux.conn = nil
	mux.authed = false
	mux.mu.Unlock()
}

func (mux *Mux) shutdown() {
	mux.mu.Lock()
	mux.closed = true
	conn := mux.conn
	mux.conn = nil
	mux.authed = false
	mux.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}
