package trip

import (
	"encoding/json"
	"errors"
	"maps"
	"strings"
	"time"
)

// Event is the domain entity corresponding to the `trip_events` table.
type Event struct {
	// Identity & audit
	ID        string
	CreatedAt time.Time

	// Foreign keys
	TripID string

	// Core payload
	Type EventType
	Data map[string]any
}

// EventType corresponds to the values in the `trip_event_type` table.
type EventType string

const (
	EventTripRequested EventType = "TRIP_REQUESTED"
	EventOfferCreated  EventType = "OFFER_CREATED"
	EventOfferAccepted EventType = "OFFER_ACCEPTED"
	EventDriverArrived EventType = "DRIVER_ARRIVED"
	EventTripStarted   EventType = "TRIP_STARTED"
	EventTripCompleted EventType = "TRIP_COMPLETED"
	EventTripCancelled EventType = "TRIP_CANCELLED"
	EventStatusChanged EventType = "STATUS_CHANGED"
)

var (
	ErrTripIDRequired   = errors.New("trip id is required")
	ErrEventDataNil     = errors.New("event data must not be nil")
	ErrInvalidEventType = errors.New("invalid trip event type")
)

// Valid reports whether eventType is one of the allowed event type constants.
func (eventType EventType) Valid() bool {
	switch eventType {
	case EventTripRequested,
		EventOfferCreated,
		EventOfferAccepted,
		EventDriverArrived,
		EventTripStarted,
		EventTripCompleted,
		EventTripCancelled,
		EventStatusChanged:
		return true
	default:
		return false
	}
}

// String returns the string representation of the EventType.
func (eventType EventType) String() string {
	return string(eventType)
}

// EventTypeFor maps a reached status to the event type written to the journal.
func EventTypeFor(status Status) EventType {
	switch status {
	case StatusAccepted:
		return EventOfferAccepted
	case StatusArrived:
		return EventDriverArrived
	case StatusStarted:
		return EventTripStarted
	case StatusCompleted:
		return EventTripCompleted
	case StatusCancelled:
		return EventTripCancelled
	default:
		return EventStatusChanged
	}
}

// NewEvent constructs a new domain Event.
func NewEvent(tripID string, eventType EventType, eventData map[string]any) (*Event, error) {
	if tripID = strings.TrimSpace(tripID); tripID == "" {
		return nil, ErrTripIDRequired
	}
	if !eventType.Valid() {
		return nil, ErrInvalidEventType
	}
	if eventData == nil {
		return nil, ErrEventDataNil
	}

	return &Event{
		TripID:    tripID,
		Type:      eventType,
		Data:      cloneMap(eventData),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Validate performs basic invariants checks mirroring DB constraints.
func (event *Event) Validate() error {
	if event.TripID == "" {
		return ErrTripIDRequired
	}
	if !event.Type.Valid() {
		return ErrInvalidEventType
	}
	if event.Data == nil {
		return ErrEventDataNil
	}
	return nil
}

// DataJSON returns event.Data encoded as JSON.
func (event *Event) DataJSON() ([]byte, error) {
	if event.Data == nil {
		return nil, ErrEventDataNil
	}
	return json.Marshal(event.Data)
}

// cloneMap makes a shallow defensive copy of a map[string]any.
func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}

	dst := make(map[string]any, len(src))
	maps.Copy(dst, src)
	return dst
}
