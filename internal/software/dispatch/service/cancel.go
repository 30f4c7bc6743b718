package service

import (
	"context"
	"fmt"
	"time"

	"trip-dispatch/internal/domain/trip"
	"trip-dispatch/internal/general/contracts"
	"trip-dispatch/internal/ports"
)

// CancelTrip cancels a trip that is not yet underway. Repeating a cancel is
// an idempotent success; cancelling a STARTED or COMPLETED trip fails with
// trip.ErrStaleTransition.
func (service *dispatchService) CancelTrip(ctx context.Context, tripID, reason string) (ports.CancelTripResult, error) {
	correlationID := generateCorrelationID()
	ctx = service.logger.WithTripID(ctx, tripID)
	now := time.Now().UTC()

	var cancelled *trip.Trip
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		if err := service.trips.Cancel(txCtx, tripID, reason, now); err != nil {
			return err
		}
		t, err := service.trips.GetByID(txCtx, tripID)
		if err != nil {
			return err
		}
		// all remaining open offers die with the trip
		if err := service.offers.VoidOpenForTrip(txCtx, tripID, ""); err != nil {
			return err
		}
		cancelled = t
		return nil
	})
	if err != nil {
		service.logger.Error(ctx, "trip_cancel_failed", "Failed to cancel trip", err, map[string]any{
			"reason":     reason,
			"request_id": correlationID,
		})
		return ports.CancelTripResult{}, err
	}

	service.publishTripStatus(ctx, contracts.SnapshotOf(cancelled), correlationID)

	service.logger.Info(ctx, "trip_cancelled", fmt.Sprintf("Trip %s cancelled", tripID), map[string]any{
		"reason":     reason,
		"request_id": correlationID,
	})

	result := ports.CancelTripResult{
		TripID: tripID,
		Status: cancelled.Status.String(),
	}
	if cancelled.CancelledAt != nil {
		result.CancelledAt = *cancelled.CancelledAt
	}
	return result, nil
}
