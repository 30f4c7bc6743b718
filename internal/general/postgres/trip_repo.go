package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trip-dispatch/internal/domain/trip"
	"trip-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
)

// TripRepo persists trips using pgx and plain SQL.
type TripRepo struct{}

// NewTripRepo constructs a new TripRepo.
func NewTripRepo() ports.TripRepository {
	return &TripRepo{}
}

// Create inserts a new trip row and writes an initial TRIP_REQUESTED event.
func (repo *TripRepo) Create(ctx context.Context, t *trip.Trip) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	// insert only the columns we actually have values for at creation time
	err = tx.QueryRow(ctx, `
		INSERT INTO trips (
			customer_id, status, requested_price, payment_method,
			pickup_lat, pickup_lng, pickup_address,
			destination_lat, destination_lng, destination_address
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at, requested_at
	`,
		t.CustomerID,
		t.Status.String(), // always "REQUESTED" at creation
		t.RequestedPrice,
		t.PaymentMethod,
		t.Pickup.Latitude,
		t.Pickup.Longitude,
		t.PickupAddress,
		t.Destination.Latitude,
		t.Destination.Longitude,
		t.DestinationAddress,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt, &t.RequestedAt)
	if err != nil {
		return err
	}

	eventData := map[string]any{
		"new_status":      t.Status.String(),
		"requested_price": t.RequestedPrice,
	}
	return insertTripEvent(ctx, tx, t.ID, trip.EventTripRequested, eventData)
}

// GetByID fetches a trip by primary key (uuid).
func (repo *TripRepo) GetByID(ctx context.Context, id string) (*trip.Trip, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	out, err := scanTrip(tx.QueryRow(ctx, selectTripColumns+` FROM trips WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, trip.ErrNotFound
		}
		return nil, err
	}
	return out, nil
}

// UpdateStatus performs a compare-and-set status transition. The write
// succeeds only when the stored status equals `expected`; otherwise the
// caller gets trip.ErrStaleTransition (or trip.ErrNotFound for an unknown id)
// so a delayed retry can never re-apply a superseded change.
func (repo *TripRepo) UpdateStatus(ctx context.Context, id string, expected, next trip.Status, at time.Time) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	if !next.Valid() || !expected.CanTransitionTo(next) {
		return trip.ErrStaleTransition
	}

	// single conditional UPDATE; the arrived_at guard keeps the stamp
	// write-once even if the guard above is ever loosened
	query := `
		UPDATE trips
		SET status = $1, updated_at = now()`
	args := []any{next.String()}

	switch next {
	case trip.StatusArrived:
		query += `, arrived_at = $2`
		args = append(args, at)
	case trip.StatusStarted:
		query += `, started_at = $2`
		args = append(args, at)
	case trip.StatusCompleted:
		query += `, completed_at = $2`
		args = append(args, at)
	default:
		args = append(args, at) // keep placeholder numbering uniform
		query += `, updated_at = $2`
	}

	query += fmt.Sprintf(` WHERE id = $%d AND status = $%d`, len(args)+1, len(args)+2)
	args = append(args, id, expected.String())
	if next == trip.StatusArrived {
		query += ` AND arrived_at IS NULL`
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return repo.preconditionError(ctx, tx, id)
	}

	eventData := map[string]any{
		"old_status": expected.String(),
		"new_status": next.String(),
		"timestamp":  at.UTC().Format(time.RFC3339),
	}
	return insertTripEvent(ctx, tx, id, trip.EventTypeFor(next), eventData)
}

// Accept atomically claims the trip for one driver: a single conditional
// UPDATE that only fires while the trip is still REQUESTED. Concurrent
// accepts for the same trip therefore resolve to exactly one winner at the
// store, with no application-level locking.
func (repo *TripRepo) Accept(ctx context.Context, tripID, driverID string, finalPrice float64, at time.Time) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE trips
		SET status = 'ACCEPTED',
		    driver_id = $1,
		    final_price = $2,
		    accepted_at = $3,
		    updated_at = now()
		WHERE id = $4 AND status = 'REQUESTED'
	`, driverID, finalPrice, at, tripID)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM trips WHERE id = $1`, tripID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return trip.ErrNotFound
		}
		if err != nil {
			return err
		}
		return trip.ErrAlreadyAccepted
	}

	eventData := map[string]any{
		"old_status":  trip.StatusRequested.String(),
		"new_status":  trip.StatusAccepted.String(),
		"driver_id":   driverID,
		"final_price": finalPrice,
		"accepted_at": at.UTC().Format(time.RFC3339),
	}
	return insertTripEvent(ctx, tx, tripID, trip.EventOfferAccepted, eventData)
}

// Cancel moves a cancellable trip to CANCELLED. Cancelling twice is an
// idempotent success; cancelling a STARTED or COMPLETED trip fails the
// precondition.
func (repo *TripRepo) Cancel(ctx context.Context, tripID, reason string, at time.Time) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE trips
		SET status = 'CANCELLED',
		    cancellation_reason = $1,
		    cancelled_at = $2,
		    updated_at = now()
		WHERE id = $3 AND status IN ('REQUESTED', 'ACCEPTED', 'ARRIVED')
	`, reason, at, tripID)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM trips WHERE id = $1`, tripID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return trip.ErrNotFound
		}
		if err != nil {
			return err
		}
		if current == trip.StatusCancelled.String() {
			return nil // already cancelled
		}
		return trip.ErrStaleTransition
	}

	eventData := map[string]any{
		"new_status":   trip.StatusCancelled.String(),
		"reason":       reason,
		"cancelled_at": at.UTC().Format(time.RFC3339),
	}
	return insertTripEvent(ctx, tx, tripID, trip.EventTripCancelled, eventData)
}

// ListRequested returns outstanding REQUESTED trips, oldest first, for the
// polling fallback that surfaces the best candidate trip to a driver.
func (repo *TripRepo) ListRequested(ctx context.Context, limit int) ([]*trip.Trip, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := tx.Query(ctx, selectTripColumns+`
		FROM trips
		WHERE status = 'REQUESTED'
		ORDER BY requested_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []*trip.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		trips = append(trips, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return trips, nil
}

// --- helpers ---

const selectTripColumns = `
		SELECT
			id, created_at, updated_at, customer_id, driver_id,
			status, requested_price, final_price, payment_method,
			pickup_lat, pickup_lng, pickup_address,
			destination_lat, destination_lng, destination_address,
			requested_at, accepted_at, arrived_at, started_at,
			completed_at, cancelled_at, cancellation_reason`

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*trip.Trip, error) {
	var out trip.Trip
	var status string

	err := row.Scan(
		&out.ID, &out.CreatedAt, &out.UpdatedAt, &out.CustomerID, &out.DriverID,
		&status, &out.RequestedPrice, &out.FinalPrice, &out.PaymentMethod,
		&out.Pickup.Latitude, &out.Pickup.Longitude, &out.PickupAddress,
		&out.Destination.Latitude, &out.Destination.Longitude, &out.DestinationAddress,
		&out.RequestedAt, &out.AcceptedAt, &out.ArrivedAt, &out.StartedAt,
		&out.CompletedAt, &out.CancelledAt, &out.CancellationReason,
	)
	if err != nil {
		return nil, err
	}
	out.Status = trip.Status(status)
	return &out, nil
}

// preconditionError distinguishes a missing row from a failed status guard.
func (repo *TripRepo) preconditionError(ctx context.Context, tx pgx.Tx, tripID string) error {
	var current string
	err := tx.QueryRow(ctx, `SELECT status FROM trips WHERE id = $1`, tripID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return trip.ErrNotFound
	}
	if err != nil {
		return err
	}
	return trip.ErrStaleTransition
}

// insertTripEvent writes a row into trip_events with encoded event_data.
func insertTripEvent(ctx context.Context, tx pgx.Tx, tripID string, eventType trip.EventType, eventData any) error {
	body, err := json.Marshal(eventData)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO trip_events (trip_id, event_type, event_data)
		VALUES ($1, $2, $3::jsonb)
	`, tripID, eventType.String(), string(body))
	return err
}
