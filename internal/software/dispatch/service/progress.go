package service

import (
	"context"
	"fmt"
	"time"

	"trip-dispatch/internal/domain/trip"
	"trip-dispatch/internal/general/contracts"
)

// expectedPrior maps a target status to the only prior status it may follow.
// Deriving the precondition from the target keeps driver reports idempotent:
// a duplicated ARRIVED lands on an ARRIVED trip, fails the precondition, and
// changes nothing.
func expectedPrior(next trip.Status) (trip.Status, bool) {
	switch next {
	case trip.StatusArrived:
		return trip.StatusAccepted, true
	case trip.StatusStarted:
		return trip.StatusArrived, true
	case trip.StatusCompleted:
		return trip.StatusStarted, true
	default:
		return "", false
	}
}

// UpdateTripStatus applies a driver-reported progress transition with a
// compare-and-set against the derived prior status. When driverID is
// non-empty it must match the trip's assigned driver.
func (service *dispatchService) UpdateTripStatus(ctx context.Context, tripID string, next trip.Status, driverID string) error {
	correlationID := generateCorrelationID()
	ctx = service.logger.WithTripID(ctx, tripID)

	expected, ok := expectedPrior(next)
	if !ok {
		return trip.ErrStaleTransition
	}
	now := time.Now().UTC()

	var updated *trip.Trip
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		t, err := service.trips.GetByID(txCtx, tripID)
		if err != nil {
			return err
		}
		if driverID != "" {
			if t.DriverID == nil || *t.DriverID != driverID {
				return trip.ErrNoDriverAssigned
			}
		}

		if err := service.trips.UpdateStatus(txCtx, tripID, expected, next, now); err != nil {
			return err
		}

		u, err := service.trips.GetByID(txCtx, tripID)
		if err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		service.logger.Error(ctx, "trip_status_update_failed", "Failed to apply trip status transition", err, map[string]any{
			"next":       next.String(),
			"driver_id":  driverID,
			"request_id": correlationID,
		})
		return err
	}

	service.publishTripStatus(ctx, contracts.SnapshotOf(updated), correlationID)

	service.logger.Info(ctx, "trip_status_updated", fmt.Sprintf("Trip %s is now %s", tripID, next), map[string]any{
		"driver_id":  driverID,
		"request_id": correlationID,
	})
	return nil
}
