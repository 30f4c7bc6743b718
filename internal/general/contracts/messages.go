package contracts

import "time"

// TripSnapshot is the full authoritative view of one trip. Every status event
// carries a complete snapshot (never just a delta) so any subscriber that
// missed intermediate events converges from a single message.
type TripSnapshot struct {
	TripID             string     `json:"trip_id"`
	Status             string     `json:"status"`
	CustomerID         string     `json:"customer_id"`
	DriverID           string     `json:"driver_id,omitempty"`
	RequestedPrice     float64    `json:"requested_price"`
	FinalPrice         *float64   `json:"final_price,omitempty"`
	PaymentMethod      string     `json:"payment_method,omitempty"`
	Pickup             GeoPoint   `json:"pickup"`
	Destination        GeoPoint   `json:"destination"`
	RequestedAt        time.Time  `json:"requested_at"`
	AcceptedAt         *time.Time `json:"accepted_at,omitempty"`
	ArrivedAt          *time.Time `json:"arrived_at,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TripStatusMessage is published on every successful transition.
// Routing key: "trip.status.{status}" on ExchangeTripTopic.
type TripStatusMessage struct {
	Type string       `json:"type"` // "trip_status_changed"
	Trip TripSnapshot `json:"trip"`
	Envelope
}

// NewTripMessage notifies candidate drivers about a fresh request.
// Delivered to each candidate's driver-inbox topic.
type NewTripMessage struct {
	Type       string       `json:"type"` // "new_trip"
	Trip       TripSnapshot `json:"trip"`
	DistanceKM float64      `json:"distance_km"` // candidate's distance to pickup
	Envelope
}

// OfferMessage is published when a driver creates or replaces an offer.
// Routing key: "trip.offer.{trip_id}" on ExchangeTripTopic.
type OfferMessage struct {
	Type      string    `json:"type"` // "offer_created" | "offer_rejected"
	OfferID   string    `json:"offer_id"`
	TripID    string    `json:"trip_id"`
	DriverID  string    `json:"driver_id"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
	Envelope
}

// DriverStatusMessage is published by driver clients reporting progress.
// Routing key: "driver.status.{driver_id}" on ExchangeDriverTopic.
type DriverStatusMessage struct {
	DriverID  string    `json:"driver_id"`
	TripID    string    `json:"trip_id"`
	Status    string    `json:"status"` // ARRIVED | STARTED | COMPLETED
	Timestamp time.Time `json:"timestamp"`
	Envelope
}

// PresenceMessage reports a driver going online/offline or moving.
// Routing key: "driver.presence" on ExchangeDriverTopic.
type PresenceMessage struct {
	DriverID  string    `json:"driver_id"`
	Online    bool      `json:"online"`
	Location  *GeoPoint `json:"location,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Envelope
}
