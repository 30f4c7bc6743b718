package service

import (
	"context"

	"trip-dispatch/internal/dispatch"
	"trip-dispatch/internal/domain/geo"
	"trip-dispatch/internal/domain/offer"
	"trip-dispatch/internal/domain/trip"
	"trip-dispatch/internal/ports"
)

const openTripScanLimit = 100

// NextTripForDriver backs the driver-side reconciliation poll: when the push
// channel dropped a broadcast, a poll still finds the nearest open trip. The
// ignore set is session state supplied by the caller, never stored.
func (service *dispatchService) NextTripForDriver(ctx context.Context, lat, lng float64, ignored []string) (*ports.NextTripResult, error) {
	at, err := geo.NewCoordinate(lat, lng)
	if err != nil {
		return nil, err
	}

	var open []*trip.Trip
	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		trips, err := service.trips.ListRequested(txCtx, openTripScanLimit)
		if err != nil {
			return err
		}
		open = trips
		return nil
	})
	if err != nil {
		service.logger.Error(ctx, "open_trip_scan_failed", "Failed to list open trips", err, nil)
		return nil, err
	}

	ignoredSet := make(map[string]struct{}, len(ignored))
	for _, id := range ignored {
		ignoredSet[id] = struct{}{}
	}

	best := dispatch.BestTripForDriver(at, open, service.cfg.Dispatch.FallbackRadiusKM, ignoredSet)
	if best == nil {
		return nil, nil
	}
	return &ports.NextTripResult{Trip: best.Trip, DistanceKM: best.DistanceKM}, nil
}

// ListOpenOffers returns the open offers on a trip, cheapest first, so the
// rider can pick. Missing trips surface trip.ErrNotFound.
func (service *dispatchService) ListOpenOffers(ctx context.Context, tripID string) ([]*offer.Offer, error) {
	var out []*offer.Offer
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		if _, err := service.trips.GetByID(txCtx, tripID); err != nil {
			return err
		}
		offers, err := service.offers.ListOpenForTrip(txCtx, tripID)
		if err != nil {
			return err
		}
		out = offers
		return nil
	})
	return out, err
}
