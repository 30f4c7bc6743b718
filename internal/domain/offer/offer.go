package offer

import (
	"errors"
	"strings"
	"time"
)

// State is the lifecycle of a single driver offer.
type State string

const (
	StateOpen     State = "OPEN"
	StateAccepted State = "ACCEPTED"
	StateRejected State = "REJECTED"
	// StateVoid marks offers that lost the race when a competing offer was
	// accepted or the trip was cancelled. Offers only exist while their trip
	// is REQUESTED; once the trip moves on, open offers are void even if the
	// row was never explicitly updated.
	StateVoid State = "VOID"
)

// String returns the string representation of the State.
func (state State) String() string {
	return string(state)
}

// Offer is the domain entity corresponding to the `trip_offers` table.
type Offer struct {
	ID        string
	CreatedAt time.Time

	TripID   string
	DriverID string
	Price    float64
	State    State
}

var (
	ErrTripRequired     = errors.New("trip id is required")
	ErrDriverRequired   = errors.New("driver id is required")
	ErrNonPositivePrice = errors.New("offer price must be positive")
	ErrNotFound         = errors.New("offer not found")
	ErrNotOpen          = errors.New("offer is no longer open")
)

// New constructs an open offer for a requested trip.
func New(tripID, driverID string, price float64) (*Offer, error) {
	if tripID = strings.TrimSpace(tripID); tripID == "" {
		return nil, ErrTripRequired
	}
	if driverID = strings.TrimSpace(driverID); driverID == "" {
		return nil, ErrDriverRequired
	}
	if price <= 0 {
		return nil, ErrNonPositivePrice
	}

	return &Offer{
		CreatedAt: time.Now().UTC(),
		TripID:    tripID,
		DriverID:  driverID,
		Price:     price,
		State:     StateOpen,
	}, nil
}

// Open reports whether the offer can still be accepted.
func (offer *Offer) Open() bool {
	return offer.State == StateOpen
}
