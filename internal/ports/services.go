package ports

import (
	"context"
	"time"

	"trip-dispatch/internal/domain/offer"
	"trip-dispatch/internal/domain/trip"
)

// ----- DTOs for the Dispatch Service -----

// RequestTripInput is the validated input required to create a trip.
type RequestTripInput struct {
	CustomerID           string
	PickupLatitude       float64
	PickupLongitude      float64
	PickupAddress        string
	DestinationLatitude  float64
	DestinationLongitude float64
	DestinationAddress   string
	RequestedPrice       float64
	PaymentMethod        string
}

// RequestTripResult is returned by DispatchService.RequestTrip.
type RequestTripResult struct {
	TripID             string `json:"trip_id"`
	Status             string `json:"status"`
	CandidatesNotified int    `json:"candidates_notified"`
	Message            string `json:"message,omitempty"` // "no drivers nearby" when zero candidates
}

// SubmitOfferInput is the validated input for a driver offer.
type SubmitOfferInput struct {
	TripID   string
	DriverID string
	Price    float64
}

// SubmitOfferResult is returned by DispatchService.SubmitOffer.
type SubmitOfferResult struct {
	OfferID string  `json:"offer_id"`
	TripID  string  `json:"trip_id"`
	Price   float64 `json:"price"`
}

// AcceptOfferResult is returned by DispatchService.AcceptOffer.
type AcceptOfferResult struct {
	TripID     string  `json:"trip_id"`
	Status     string  `json:"status"`
	DriverID   string  `json:"driver_id"`
	FinalPrice float64 `json:"final_price"`
}

// CancelTripResult is returned by DispatchService.CancelTrip.
type CancelTripResult struct {
	TripID      string    `json:"trip_id"`
	Status      string    `json:"status"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// NextTripResult pairs the best open trip for a polling driver with the
// driver's distance to its pickup.
type NextTripResult struct {
	Trip       *trip.Trip
	DistanceKM float64
}

// ----- Dispatch Service Interface -----

// DispatchService is the engine's caller-facing boundary: trip lifecycle,
// offer negotiation, and driver presence.
type DispatchService interface {
	RequestTrip(ctx context.Context, in RequestTripInput) (RequestTripResult, error)
	GetTrip(ctx context.Context, tripID string) (*trip.Trip, error)

	SubmitOffer(ctx context.Context, in SubmitOfferInput) (SubmitOfferResult, error)
	AcceptOffer(ctx context.Context, tripID, offerID string) (AcceptOfferResult, error)
	RejectOffer(ctx context.Context, offerID string) error
	ListOpenOffers(ctx context.Context, tripID string) ([]*offer.Offer, error)

	// NextTripForDriver is the polling fallback for drivers whose push channel
	// missed a broadcast: the single best open trip near the given location,
	// or nil when nothing is in range. Trips named in ignored are skipped for
	// this call only; the ignore set is never persisted.
	NextTripForDriver(ctx context.Context, lat, lng float64, ignored []string) (*NextTripResult, error)

	// UpdateTripStatus applies a driver-reported transition. The expected
	// prior status is derived from the target, so a delayed retry that no
	// longer matches fails with trip.ErrStaleTransition.
	UpdateTripStatus(ctx context.Context, tripID string, next trip.Status, driverID string) error
	CancelTrip(ctx context.Context, tripID, reason string) (CancelTripResult, error)

	GoOnline(ctx context.Context, driverID string, lat, lng float64) error
	GoOffline(ctx context.Context, driverID string) error
	UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error

	RunBackgroundConsumers(ctx context.Context)
}

// Realtime publishes an event payload to every live subscription on a topic.
// The WebSocket hub implements it; tests substitute a recorder.
type Realtime interface {
	Publish(topic string, payload any)
}

// MessagePublisher sends a message to a broker exchange.
type MessagePublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}
