package contracts

import "trip-dispatch/internal/domain/trip"

// SnapshotOf flattens a trip entity into its full wire view. Events always
// carry the whole snapshot so late subscribers converge from one message.
func SnapshotOf(t *trip.Trip) TripSnapshot {
	snap := TripSnapshot{
		TripID:         t.ID,
		Status:         t.Status.String(),
		CustomerID:     t.CustomerID,
		RequestedPrice: t.RequestedPrice,
		FinalPrice:     t.FinalPrice,
		PaymentMethod:  t.PaymentMethod,
		Pickup: GeoPoint{
			Lat:     t.Pickup.Latitude,
			Lng:     t.Pickup.Longitude,
			Address: t.PickupAddress,
		},
		Destination: GeoPoint{
			Lat:     t.Destination.Latitude,
			Lng:     t.Destination.Longitude,
			Address: t.DestinationAddress,
		},
		RequestedAt: t.RequestedAt,
		AcceptedAt:  t.AcceptedAt,
		ArrivedAt:   t.ArrivedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
		CancelledAt: t.CancelledAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.DriverID != nil {
		snap.DriverID = *t.DriverID
	}
	if t.CancellationReason != nil {
		snap.CancellationReason = *t.CancellationReason
	}
	return snap
}
