package trip

import (
	"errors"
	"strings"
	"time"

	"trip-dispatch/internal/domain/geo"
)

// Trip is the domain entity corresponding to the `trips` table.
type Trip struct {
	// Identity & audit
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Actors
	CustomerID string
	DriverID   *string // nil until an offer is accepted

	// Core state
	Status         Status
	RequestedPrice float64
	FinalPrice     *float64 // nil until settled
	PaymentMethod  string

	// Route
	Pickup             geo.Coordinate
	Destination        geo.Coordinate
	PickupAddress      string
	DestinationAddress string

	// Lifecycle timestamps
	RequestedAt time.Time
	AcceptedAt  *time.Time
	ArrivedAt   *time.Time // set exactly once, on ACCEPTED -> ARRIVED
	StartedAt   *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time

	CancellationReason *string
}

var (
	ErrCustomerRequired    = errors.New("customer id is required")
	ErrDriverRequired      = errors.New("driver id is required")
	ErrNonPositivePrice    = errors.New("price must be positive")
	ErrStaleTransition     = errors.New("trip status precondition failed")
	ErrAlreadyAccepted     = errors.New("trip already accepted by another offer")
	ErrNotFound            = errors.New("trip not found")
	ErrNoDriverAssigned    = errors.New("no driver assigned")
	ErrCancelWhileUnderway = errors.New("trip underway, cancellation not allowed")
)

// NewTrip creates a new trip in REQUESTED state.
func NewTrip(customerID string, pickup, destination geo.Coordinate, pickupAddress, destinationAddress string, requestedPrice float64, paymentMethod string) (*Trip, error) {
	if customerID = strings.TrimSpace(customerID); customerID == "" {
		return nil, ErrCustomerRequired
	}
	if requestedPrice <= 0 {
		return nil, ErrNonPositivePrice
	}
	if err := pickup.Validate(); err != nil {
		return nil, err
	}
	if err := destination.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Trip{
		CreatedAt:          now,
		UpdatedAt:          now,
		CustomerID:         customerID,
		Status:             StatusRequested,
		RequestedPrice:     requestedPrice,
		PaymentMethod:      strings.TrimSpace(paymentMethod),
		Pickup:             pickup,
		Destination:        destination,
		PickupAddress:      strings.TrimSpace(pickupAddress),
		DestinationAddress: strings.TrimSpace(destinationAddress),
		RequestedAt:        now,
	}, nil
}

// Accept sets the winning driver and price and moves REQUESTED -> ACCEPTED.
func (trip *Trip) Accept(driverID string, finalPrice float64) error {
	if driverID == "" {
		return ErrDriverRequired
	}
	if finalPrice <= 0 {
		return ErrNonPositivePrice
	}
	if trip.Status != StatusRequested {
		return ErrAlreadyAccepted
	}

	now := time.Now().UTC()
	trip.DriverID = &driverID
	trip.FinalPrice = &finalPrice
	trip.AcceptedAt = &now
	trip.setStatus(StatusAccepted)
	return nil
}

// MarkArrived transitions ACCEPTED -> ARRIVED and stamps ArrivedAt once.
func (trip *Trip) MarkArrived() error {
	if trip.DriverID == nil || *trip.DriverID == "" {
		return ErrNoDriverAssigned
	}
	if trip.Status != StatusAccepted {
		return ErrStaleTransition
	}
	now := time.Now().UTC()
	trip.ArrivedAt = &now
	trip.setStatus(StatusArrived)
	return nil
}

// Start transitions ARRIVED -> STARTED.
func (trip *Trip) Start() error {
	if trip.DriverID == nil || *trip.DriverID == "" {
		return ErrNoDriverAssigned
	}
	if trip.Status != StatusArrived {
		return ErrStaleTransition
	}
	now := time.Now().UTC()
	trip.StartedAt = &now
	trip.setStatus(StatusStarted)
	return nil
}

// Complete transitions STARTED -> COMPLETED and finalizes the price.
func (trip *Trip) Complete(finalPrice float64) error {
	if trip.Status != StatusStarted {
		return ErrStaleTransition
	}
	if finalPrice <= 0 {
		return ErrNonPositivePrice
	}
	now := time.Now().UTC()
	trip.CompletedAt = &now
	trip.FinalPrice = &finalPrice
	trip.setStatus(StatusCompleted)
	return nil
}

// Cancel transitions to CANCELLED. Once underway (STARTED) a trip can no
// longer be cancelled, only completed.
func (trip *Trip) Cancel(reason string) error {
	if trip.Status.Terminal() {
		return ErrStaleTransition
	}
	if trip.Status == StatusStarted {
		return ErrCancelWhileUnderway
	}
	now := time.Now().UTC()
	trip.CancelledAt = &now
	if rs := strings.TrimSpace(reason); rs != "" {
		trip.CancellationReason = &rs
	}
	trip.setStatus(StatusCancelled)
	return nil
}

// Active reports whether the trip has a driver en route or aboard.
func (trip *Trip) Active() bool {
	switch trip.Status {
	case StatusAccepted, StatusArrived, StatusStarted:
		return true
	default:
		return false
	}
}

// ----- internal helpers -----

func (trip *Trip) setStatus(status Status) {
	trip.Status = status
	trip.touch()
}

func (trip *Trip) touch() {
	trip.UpdatedAt = time.Now().UTC()
}
