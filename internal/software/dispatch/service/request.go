package service

import (
	"context"
	"fmt"

	"trip-dispatch/internal/dispatch"
	"trip-dispatch/internal/domain/geo"
	"trip-dispatch/internal/domain/trip"
	"trip-dispatch/internal/general/contracts"
	"trip-dispatch/internal/observability"
	"trip-dispatch/internal/ports"
)

// RequestTrip creates a trip in REQUESTED state and broadcasts it to every
// candidate driver within the dispatch radius. Zero candidates is not an
// error: the trip stays open and the polling fallback picks it up.
func (service *dispatchService) RequestTrip(ctx context.Context, in ports.RequestTripInput) (ports.RequestTripResult, error) {
	correlationID := generateCorrelationID()

	pickup, err := geo.NewCoordinate(in.PickupLatitude, in.PickupLongitude)
	if err != nil {
		return ports.RequestTripResult{}, err
	}
	destination, err := geo.NewCoordinate(in.DestinationLatitude, in.DestinationLongitude)
	if err != nil {
		return ports.RequestTripResult{}, err
	}

	t, err := trip.NewTrip(in.CustomerID, pickup, destination, in.PickupAddress, in.DestinationAddress, in.RequestedPrice, in.PaymentMethod)
	if err != nil {
		return ports.RequestTripResult{}, err
	}

	// persist the trip and its initial journal entry in one transaction
	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		return service.trips.Create(txCtx, t)
	})
	if err != nil {
		service.logger.Error(ctx, "trip_create_failed", "Failed to create trip", err, map[string]any{
			"customer_id": in.CustomerID,
			"request_id":  correlationID,
		})
		return ports.RequestTripResult{}, err
	}
	observability.TripsRequested.Inc()

	ctx = service.logger.WithTripID(ctx, t.ID)

	// find candidate drivers near the pickup point
	pool, err := service.presence.Nearby(ctx, t.Pickup, service.cfg.Dispatch.RadiusKM, 50)
	if err != nil {
		// presence index down degrades matching; the trip is already stored
		service.logger.Error(ctx, "presence_lookup_failed", "Failed to query driver presence index", err, map[string]any{
			"request_id": correlationID,
		})
		pool = nil
	}

	candidates := dispatch.CandidatesForTrip(t.Pickup, pool, service.cfg.Dispatch.RadiusKM, nil)
	snap := contracts.SnapshotOf(t)

	for _, cand := range candidates {
		msg := contracts.NewTripMessage{
			Type:       "new_trip",
			Trip:       snap,
			DistanceKM: cand.DistanceKM,
			Envelope:   envelope(correlationID),
		}
		service.realtime.Publish(contracts.TopicDriverInbox(cand.DriverID), msg)
	}

	// publish the REQUESTED status for auditors and late subscribers
	service.publishTripStatus(ctx, snap, correlationID)

	service.logger.Info(ctx, "trip_requested", fmt.Sprintf("Trip %s created", t.ID), map[string]any{
		"customer_id":         in.CustomerID,
		"candidates_notified": len(candidates),
		"dispatch_radius_km":  service.cfg.Dispatch.RadiusKM,
		"request_id":          correlationID,
	})

	result := ports.RequestTripResult{
		TripID:             t.ID,
		Status:             t.Status.String(),
		CandidatesNotified: len(candidates),
	}
	if len(candidates) == 0 {
		result.Message = dispatch.ErrNoDriversNearby.Error() + "; the request stays open"
	}
	return result, nil
}

// GetTrip returns the authoritative trip record. This backs the clients'
// reconciliation polls.
func (service *dispatchService) GetTrip(ctx context.Context, tripID string) (*trip.Trip, error) {
	var out *trip.Trip
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		t, err := service.trips.GetByID(txCtx, tripID)
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}
