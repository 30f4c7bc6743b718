package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trip-dispatch/internal/domain/offer"
	"trip-dispatch/internal/domain/trip"
	"trip-dispatch/internal/general/contracts"
	"trip-dispatch/internal/observability"
	"trip-dispatch/internal/ports"
)

// SubmitOffer records a driver's bid on a requested trip. A driver bidding
// again on the same trip replaces their previous price.
func (service *dispatchService) SubmitOffer(ctx context.Context, in ports.SubmitOfferInput) (ports.SubmitOfferResult, error) {
	correlationID := generateCorrelationID()
	ctx = service.logger.WithTripID(ctx, in.TripID)

	o, err := offer.New(in.TripID, in.DriverID, in.Price)
	if err != nil {
		return ports.SubmitOfferResult{}, err
	}

	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		t, err := service.trips.GetByID(txCtx, in.TripID)
		if err != nil {
			return err
		}
		// offers only make sense while the trip is still open
		if t.Status != trip.StatusRequested {
			return trip.ErrAlreadyAccepted
		}
		if err := service.offers.Upsert(txCtx, o); err != nil {
			return err
		}

		ev, err := trip.NewEvent(in.TripID, trip.EventOfferCreated, map[string]any{
			"offer_id":  o.ID,
			"driver_id": o.DriverID,
			"price":     o.Price,
		})
		if err != nil {
			return err
		}
		return service.events.Append(txCtx, ev)
	})
	if err != nil {
		service.logger.Error(ctx, "offer_submit_failed", "Failed to submit offer", err, map[string]any{
			"driver_id":  in.DriverID,
			"request_id": correlationID,
		})
		return ports.SubmitOfferResult{}, err
	}
	observability.OffersTotal.Inc()

	service.publishOffer(ctx, contracts.OfferMessage{
		Type:      "offer_created",
		OfferID:   o.ID,
		TripID:    o.TripID,
		DriverID:  o.DriverID,
		Price:     o.Price,
		CreatedAt: o.CreatedAt,
		Envelope:  envelope(correlationID),
	})

	service.logger.Info(ctx, "offer_submitted", fmt.Sprintf("Offer %s submitted", o.ID), map[string]any{
		"driver_id":  in.DriverID,
		"price":      in.Price,
		"request_id": correlationID,
	})

	return ports.SubmitOfferResult{OfferID: o.ID, TripID: o.TripID, Price: o.Price}, nil
}

// AcceptOffer settles the negotiation: exactly one offer wins. The winning
// write is a conditional store update guarded by the REQUESTED status, so
// under N concurrent accepts one succeeds and the rest surface
// trip.ErrAlreadyAccepted. Losing open offers are voided in the same
// transaction.
func (service *dispatchService) AcceptOffer(ctx context.Context, tripID, offerID string) (ports.AcceptOfferResult, error) {
	correlationID := generateCorrelationID()
	ctx = service.logger.WithTripID(ctx, tripID)
	now := time.Now().UTC()

	var (
		winner *offer.Offer
		t      *trip.Trip
	)

	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		o, err := service.offers.GetByID(txCtx, offerID)
		if err != nil {
			return err
		}
		if o.TripID != tripID {
			return offer.ErrNotFound
		}
		if !o.Open() {
			return offer.ErrNotOpen
		}

		// the CAS write; the single point deciding the winner
		if err := service.trips.Accept(txCtx, tripID, o.DriverID, o.Price, now); err != nil {
			return err
		}
		if err := service.offers.MarkAccepted(txCtx, o.ID); err != nil {
			return err
		}
		if err := service.offers.VoidOpenForTrip(txCtx, tripID, o.ID); err != nil {
			return err
		}

		updated, err := service.trips.GetByID(txCtx, tripID)
		if err != nil {
			return err
		}
		winner, t = o, updated
		return nil
	})
	if err != nil {
		if errors.Is(err, trip.ErrAlreadyAccepted) {
			observability.AcceptResults.WithLabelValues("conflict").Inc()
			service.logger.Info(ctx, "offer_accept_conflict", "Trip already accepted by a competing offer", map[string]any{
				"offer_id":   offerID,
				"request_id": correlationID,
			})
		} else {
			observability.AcceptResults.WithLabelValues("error").Inc()
			service.logger.Error(ctx, "offer_accept_failed", "Failed to accept offer", err, map[string]any{
				"offer_id":   offerID,
				"request_id": correlationID,
			})
		}
		return ports.AcceptOfferResult{}, err
	}
	observability.AcceptResults.WithLabelValues("won").Inc()

	// full snapshot out on both transports
	service.publishTripStatus(ctx, contracts.SnapshotOf(t), correlationID)

	service.logger.Info(ctx, "offer_accepted", fmt.Sprintf("Offer %s won trip %s", winner.ID, tripID), map[string]any{
		"driver_id":   winner.DriverID,
		"final_price": winner.Price,
		"request_id":  correlationID,
	})

	return ports.AcceptOfferResult{
		TripID:     tripID,
		Status:     t.Status.String(),
		DriverID:   winner.DriverID,
		FinalPrice: winner.Price,
	}, nil
}

// RejectOffer closes one open offer; the trip stays open for others.
func (service *dispatchService) RejectOffer(ctx context.Context, offerID string) error {
	correlationID := generateCorrelationID()

	var rejected *offer.Offer
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		o, err := service.offers.GetByID(txCtx, offerID)
		if err != nil {
			return err
		}
		if err := service.offers.Reject(txCtx, offerID); err != nil {
			return err
		}
		rejected = o
		return nil
	})
	if err != nil {
		service.logger.Error(ctx, "offer_reject_failed", "Failed to reject offer", err, map[string]any{
			"offer_id":   offerID,
			"request_id": correlationID,
		})
		return err
	}

	service.publishOffer(ctx, contracts.OfferMessage{
		Type:      "offer_rejected",
		OfferID:   rejected.ID,
		TripID:    rejected.TripID,
		DriverID:  rejected.DriverID,
		Price:     rejected.Price,
		CreatedAt: rejected.CreatedAt,
		Envelope:  envelope(correlationID),
	})
	return nil
}
