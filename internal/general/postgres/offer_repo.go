package postgres

import (
	"context"
	"errors"
	"fmt"

	"trip-dispatch/internal/domain/offer"
	"trip-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
)

// OfferRepo persists driver offers using pgx and plain SQL.
type OfferRepo struct{}

// NewOfferRepo constructs a new OfferRepo.
func NewOfferRepo() ports.OfferRepository {
	return &OfferRepo{}
}

// Upsert inserts an open offer, or replaces the price of the driver's
// existing open offer for the same trip. One open offer per (trip, driver).
func (repo *OfferRepo) Upsert(ctx context.Context, o *offer.Offer) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	return tx.QueryRow(ctx, `
		INSERT INTO trip_offers (trip_id, driver_id, price, state)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (trip_id, driver_id)
		DO UPDATE SET price = EXCLUDED.price, state = $4, created_at = now()
		RETURNING id, created_at
	`,
		o.TripID,
		o.DriverID,
		o.Price,
		offer.StateOpen.String(),
	).Scan(&o.ID, &o.CreatedAt)
}

// GetByID fetches an offer by primary key.
func (repo *OfferRepo) GetByID(ctx context.Context, id string) (*offer.Offer, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var out offer.Offer
	var state string
	err = tx.QueryRow(ctx, `
		SELECT id, created_at, trip_id, driver_id, price, state
		FROM trip_offers
		WHERE id = $1
	`, id).Scan(&out.ID, &out.CreatedAt, &out.TripID, &out.DriverID, &out.Price, &state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, offer.ErrNotFound
		}
		return nil, err
	}
	out.State = offer.State(state)
	return &out, nil
}

// Reject closes an open offer without affecting the trip.
func (repo *OfferRepo) Reject(ctx context.Context, offerID string) error {
	return repo.transition(ctx, offerID, offer.StateRejected)
}

// MarkAccepted records the winning offer.
func (repo *OfferRepo) MarkAccepted(ctx context.Context, offerID string) error {
	return repo.transition(ctx, offerID, offer.StateAccepted)
}

// transition moves an OPEN offer to a closed state. Acting on a non-open
// offer yields offer.ErrNotOpen so a double accept or reject is visible to
// the caller.
func (repo *OfferRepo) transition(ctx context.Context, offerID string, next offer.State) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE trip_offers
		SET state = $1
		WHERE id = $2 AND state = 'OPEN'
	`, next.String(), offerID)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		var current string
		err := tx.QueryRow(ctx, `SELECT state FROM trip_offers WHERE id = $1`, offerID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return offer.ErrNotFound
		}
		if err != nil {
			return err
		}
		return offer.ErrNotOpen
	}
	return nil
}

// VoidOpenForTrip closes every remaining open offer on a trip once a winner
// is recorded, in one statement.
func (repo *OfferRepo) VoidOpenForTrip(ctx context.Context, tripID, winningOfferID string) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE trip_offers
		SET state = 'VOID'
		WHERE trip_id = $1 AND id <> $2 AND state = 'OPEN'
	`, tripID, winningOfferID)
	return err
}

// ListOpenForTrip returns the open offers for a trip, cheapest first.
func (repo *OfferRepo) ListOpenForTrip(ctx context.Context, tripID string) ([]*offer.Offer, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT id, created_at, trip_id, driver_id, price, state
		FROM trip_offers
		WHERE trip_id = $1 AND state = 'OPEN'
		ORDER BY price ASC, created_at ASC
	`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []*offer.Offer
	for rows.Next() {
		var o offer.Offer
		var state string
		if err := rows.Scan(&o.ID, &o.CreatedAt, &o.TripID, &o.DriverID, &o.Price, &state); err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		o.State = offer.State(state)
		offers = append(offers, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return offers, nil
}
