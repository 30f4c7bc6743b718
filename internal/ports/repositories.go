package ports

import (
	"context"
	"time"

	"trip-dispatch/internal/domain/driver"
	"trip-dispatch/internal/domain/geo"
	"trip-dispatch/internal/domain/offer"
	"trip-dispatch/internal/domain/trip"
)

// UnitOfWork interface is used to manage transactions across multiple repository operations.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TripRepository owns the authoritative trip record. Status writes are
// conditional: every mutation names the expected prior status and fails with
// trip.ErrStaleTransition when the stored status differs, which is the only
// lock-like discipline the engine needs. trip.ErrNotFound, the precondition
// errors and plain I/O failures are all distinguishable.
type TripRepository interface {
	Create(ctx context.Context, t *trip.Trip) error
	GetByID(ctx context.Context, id string) (*trip.Trip, error)

	// UpdateStatus performs a compare-and-set transition. The ARRIVED
	// transition stamps arrived_at exactly once.
	UpdateStatus(ctx context.Context, id string, expected, next trip.Status, at time.Time) error

	// Accept atomically moves REQUESTED -> ACCEPTED setting driver and final
	// price in one conditional write. A lost race yields trip.ErrAlreadyAccepted.
	Accept(ctx context.Context, tripID, driverID string, finalPrice float64, at time.Time) error

	// Cancel moves any cancellable status to CANCELLED. Cancelling an already
	// cancelled trip is an idempotent success.
	Cancel(ctx context.Context, tripID, reason string, at time.Time) error

	// ListRequested returns outstanding trips for the polling fallback.
	ListRequested(ctx context.Context, limit int) ([]*trip.Trip, error)
}

// OfferRepository persists driver offers. A driver holds at most one open
// offer per trip; resubmission replaces the amount.
type OfferRepository interface {
	Upsert(ctx context.Context, o *offer.Offer) error
	GetByID(ctx context.Context, id string) (*offer.Offer, error)
	Reject(ctx context.Context, offerID string) error

	// MarkAccepted records the winner and voids every other open offer for
	// the same trip in one statement each.
	MarkAccepted(ctx context.Context, offerID string) error
	VoidOpenForTrip(ctx context.Context, tripID, winningOfferID string) error

	ListOpenForTrip(ctx context.Context, tripID string) ([]*offer.Offer, error)
}

// TripEventRepository appends to the trip event journal.
type TripEventRepository interface {
	Append(ctx context.Context, e *trip.Event) error
}

// PresenceIndex is the ephemeral geo index of online drivers. It backs the
// candidate filter's driver pool; it is not authoritative trip state.
type PresenceIndex interface {
	SetOnline(ctx context.Context, driverID string, loc geo.Coordinate) error
	SetOffline(ctx context.Context, driverID string) error
	UpdateLocation(ctx context.Context, driverID string, loc geo.Coordinate) error

	// Nearby lists online drivers with a location fix within radiusKM of the
	// given point, nearest first.
	Nearby(ctx context.Context, center geo.Coordinate, radiusKM float64, limit int) ([]driver.Presence, error)
}
