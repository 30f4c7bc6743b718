package postgres

import (
	"context"

	"trip-dispatch/internal/domain/trip"
	"trip-dispatch/internal/ports"
)

// TripEventRepo appends rows to the trip event journal.
type TripEventRepo struct{}

// NewTripEventRepo constructs a new TripEventRepo.
func NewTripEventRepo() ports.TripEventRepository {
	return &TripEventRepo{}
}

// Append validates and inserts a journal event within the ambient transaction.
func (repo *TripEventRepo) Append(ctx context.Context, e *trip.Event) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	if err := e.Validate(); err != nil {
		return err
	}

	body, err := e.DataJSON()
	if err != nil {
		return err
	}

	return tx.QueryRow(ctx, `
		INSERT INTO trip_events (trip_id, event_type, event_data)
		VALUES ($1, $2, $3::jsonb)
		RETURNING id, created_at
	`, e.TripID, e.Type.String(), string(body)).Scan(&e.ID, &e.CreatedAt)
}
