package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"trip-dispatch/internal/domain/user"
	"trip-dispatch/internal/general/contracts"
	"trip-dispatch/internal/general/jwt"
	"trip-dispatch/internal/general/logger"
	"trip-dispatch/internal/observability"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout   = 5 * time.Second
	wsCloseAckWindow = 2 * time.Second
	ctrlTimeout      = 5 * time.Second
	readWindow       = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub handles WebSocket connections with JWT auth and routes published
// events to topic subscribers. One connection multiplexes any number of
// subscriptions.
type Hub struct {
	logger     *logger.Logger
	jwtMgr     *jwt.Manager
	writeLocks sync.Map // *websocket.Conn -> *sync.Mutex
	registry   *registry
}

// NewHub creates a Hub with JWT auth.
func NewHub(logger *logger.Logger, jwtMgr *jwt.Manager) *Hub {
	return &Hub{
		logger:   logger,
		jwtMgr:   jwtMgr,
		registry: newRegistry(),
	}
}

// Connect upgrades the request and serves one authenticated connection.
// The first frame must be an auth frame carrying "Bearer <jwt>"; after
// auth_success the client may subscribe and unsubscribe freely.
func (hub *Hub) Connect(w http.ResponseWriter, r *http.Request) {
	// 1) Upgrade HTTP -> WS
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	// Teardown order (LIFO on return):
	defer conn.Close()                // close the socket last
	defer hub.writeLocks.Delete(conn) // forget per-connection mutex (idempotent)
	defer hub.registry.removeConn(conn)

	// 2) Set auth deadline
	conn.SetReadLimit(1 << 20) // 1 MiB
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		hub.logger.Error(r.Context(), "ws_set_deadline_failed", "Failed to set initial read deadline", err, nil)
		hub.sendAuthError(conn, "internal server error")
		return
	}

	// 3) First frame must authenticate
	msgType, firstFrame, err := conn.ReadMessage()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			hub.logger.Error(r.Context(), "ws_auth_timeout", "Client disconnected before authentication", err, nil)
		} else {
			hub.logger.Error(r.Context(), "ws_auth_read_failed", "Failed to read auth message", err, nil)
		}
		hub.sendAuthError(conn, "authentication timeout: please send auth message within 5 seconds")
		return
	}

	if msgType != websocket.TextMessage {
		hub.logger.Error(r.Context(), "ws_auth_invalid_format", "Auth message must be text format", nil, nil)
		hub.sendAuthError(conn, "auth message must be in text format")
		return
	}

	var authFrame contracts.Frame
	if err := json.Unmarshal(firstFrame, &authFrame); err != nil || authFrame.Type != contracts.FrameAuth {
		hub.logger.Error(r.Context(), "ws_auth_invalid_format", "First frame is not an auth frame", err, nil)
		hub.sendAuthError(conn, "first frame must be an auth frame")
		return
	}

	res, err := jwt.ValidateWSToken(authFrame.Token, hub.jwtMgr, user.RoleRider, user.RoleDriver, user.RoleAdmin)
	if err != nil {
		hub.logger.Error(r.Context(), "ws_auth_failed", "Invalid auth message or token", err, nil)
		hub.sendAuthError(conn, "authentication failed: invalid token")
		return
	}
	claims := res.Claims

	// 4) Send authentication success message
	if err := hub.sendAuthSuccess(conn, claims.Subject); err != nil {
		hub.logger.Error(r.Context(), "ws_auth_success_failed", "Failed to send auth success message", err, nil)
		return
	}

	hub.logger.Info(r.Context(), "ws_connected", "WebSocket connected",
		map[string]any{"subject": claims.Subject, "role": claims.Role})
	observability.WSConnections.Inc()
	defer observability.WSConnections.Dec()

	// 5) Reset read deadline after auth
	_ = conn.SetReadDeadline(time.Now().Add(readWindow))
	conn.SetPongHandler(func(_ string) error {
		return conn.SetReadDeadline(time.Now().Add(readWindow))
	})

	// 6) Start ping loop (every 30s) using the per-connection writer lock
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	go func() {
		for range ticker.C {
			mu := hub.lockOf(conn)
			mu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(ctrlTimeout))
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctrlTimeout))
			mu.Unlock()
			if err != nil {
				// Close socket to unblock reader; goroutine exits.
				_ = conn.Close()
				hub.logger.Error(r.Context(), "ws_ping_failed", "Failed to send ping", err, nil)
				return
			}
		}
	}()

	// 7) Read loop: route control frames
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readWindow))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				hub.logger.Error(r.Context(), "ws_unexpected_close", "Connection closed unexpectedly", err, map[string]any{
					"subject": claims.Subject,
				})
				hub.wsWriteClose(conn, websocket.CloseInternalServerErr, "internal error")
			} else {
				hub.logger.Info(r.Context(), "ws_connection_closed", "Connection closed normally", map[string]any{
					"subject": claims.Subject,
				})
				hub.wsWriteClose(conn, websocket.CloseNormalClosure, "bye")
			}
			break
		}

		var frame contracts.Frame
		if err := json.Unmarshal(payload, &frame); err != nil {
			_ = hub.writeFrame(conn, contracts.Frame{Type: contracts.FrameError, Error: "bad json"})
			continue
		}

		switch frame.Type {
		case contracts.FrameSubscribe:
			hub.handleSubscribe(r.Context(), conn, claims, frame)

		case contracts.FrameUnsubscribe:
			hub.registry.remove(conn, frame.SubscriptionID)

		default:
			_ = hub.writeFrame(conn, contracts.Frame{
				Type:           contracts.FrameError,
				SubscriptionID: frame.SubscriptionID,
				Error:          "unknown frame type",
			})
		}
	}
}

func (hub *Hub) handleSubscribe(ctx context.Context, conn *websocket.Conn, claims *jwt.Claims, frame contracts.Frame) {
	if frame.SubscriptionID == "" || frame.Topic == "" {
		_ = hub.writeFrame(conn, contracts.Frame{
			Type:           contracts.FrameError,
			SubscriptionID: frame.SubscriptionID,
			Error:          "subscribe requires subscription_id and topic",
		})
		return
	}

	if !topicAllowed(frame.Topic, claims) {
		hub.logger.Error(ctx, "ws_subscribe_denied", "Subscription denied for topic", nil, map[string]any{
			"subject": claims.Subject,
			"topic":   frame.Topic,
		})
		_ = hub.writeFrame(conn, contracts.Frame{
			Type:           contracts.FrameError,
			SubscriptionID: frame.SubscriptionID,
			Topic:          frame.Topic,
			Error:          "topic not allowed",
		})
		return
	}

	hub.registry.add(conn, frame.SubscriptionID, frame.Topic)
	_ = hub.writeFrame(conn, contracts.Frame{
		Type:           contracts.FrameSubscribed,
		SubscriptionID: frame.SubscriptionID,
		Topic:          frame.Topic,
	})
}

// topicAllowed enforces topic-level access: a driver inbox belongs to its
// driver, role topics to holders of that role, trip topics to any
// authenticated principal (trip ids are unguessable uuids), admins see all.
func topicAllowed(topic string, claims *jwt.Claims) bool {
	if claims.Role == user.RoleAdmin {
		return true
	}
	if inbox := contracts.TopicDriverInbox(claims.Subject); topic == inbox {
		return claims.Role == user.RoleDriver
	}
	if strings.HasPrefix(topic, contracts.TopicDriverInboxPrefix()) {
		return false
	}
	if roleTopic := contracts.TopicRole(claims.Role.String()); topic == roleTopic {
		return true
	}
	if strings.HasPrefix(topic, contracts.TopicRolePrefix()) {
		return false
	}
	return true
}

// Publish delivers a payload to every subscriber of a topic. Implements the
// realtime port; a topic with no subscribers is a silent no-op.
func (hub *Hub) Publish(topic string, payload any) {
	subs := hub.registry.subscribers(topic)
	if len(subs) == 0 {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		hub.logger.Error(context.Background(), "ws_publish_marshal_failed", "Failed to marshal event payload", err, map[string]any{
			"topic": topic,
		})
		return
	}

	for _, sub := range subs {
		frame := contracts.Frame{
			Type:           contracts.FrameEvent,
			SubscriptionID: sub.subID,
			Topic:          topic,
			Payload:        body,
		}
		if err := hub.writeFrame(sub.conn, frame); err != nil {
			// a dead subscriber is cleaned up by its own read loop
			hub.logger.Debug(context.Background(), "ws_publish_write_failed", "Dropped event for subscriber", map[string]any{
				"topic": topic,
			})
		}
	}
	observability.EventsPublished.WithLabelValues("websocket").Inc()
}

// sendAuthError sends authentication error message to client
func (hub *Hub) sendAuthError(conn *websocket.Conn, message string) error {
	return hub.writeFrame(conn, contracts.Frame{Type: contracts.FrameAuthError, Error: message})
}

// sendAuthSuccess sends authentication success message to client
func (hub *Hub) sendAuthSuccess(conn *websocket.Conn, subject string) error {
	payload, err := json.Marshal(map[string]any{
		"subject":   subject,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return hub.writeFrame(conn, contracts.Frame{Type: contracts.FrameAuthOK, Payload: payload})
}
