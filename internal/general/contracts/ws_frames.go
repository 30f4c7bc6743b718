package contracts

import "encoding/json"

// Frame types exchanged over the WebSocket transport. One connection carries
// many logical subscriptions; every event frame names the subscription it
// belongs to so the client multiplexer can route it.
const (
	FrameAuth        = "auth"
	FrameAuthOK      = "auth_success"
	FrameAuthError   = "auth_error"
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameSubscribed  = "subscribed"
	FrameEvent       = "event"
	FrameError       = "error"
)

// Frame is the single envelope for all control and event traffic.
type Frame struct {
	Type           string          `json:"type"`
	SubscriptionID string          `json:"subscription_id,omitempty"`
	Topic          string          `json:"topic,omitempty"`
	Token          string          `json:"token,omitempty"` // auth frames only: "Bearer <jwt>"
	Payload        json.RawMessage `json:"payload,omitempty"`
	Error          string          `json:"error,omitempty"`
}
