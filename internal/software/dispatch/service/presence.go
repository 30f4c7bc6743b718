package service

import (
	"context"
	"encoding/json"
	"time"

	"trip-dispatch/internal/domain/geo"
	"trip-dispatch/internal/general/contracts"
	"trip-dispatch/internal/observability"
)

// GoOnline puts a driver into the candidate pool at the given location.
func (service *dispatchService) GoOnline(ctx context.Context, driverID string, lat, lng float64) error {
	loc, err := geo.NewCoordinate(lat, lng)
	if err != nil {
		return err
	}
	if err := service.presence.SetOnline(ctx, driverID, loc); err != nil {
		service.logger.Error(ctx, "driver_online_failed", "Failed to mark driver online", err, map[string]any{
			"driver_id": driverID,
		})
		return err
	}
	observability.DriversOnline.Inc()

	service.publishPresence(ctx, driverID, true, &loc)
	service.logger.Info(ctx, "driver_online", "Driver is online", map[string]any{
		"driver_id": driverID,
	})
	return nil
}

// GoOffline removes a driver from the candidate pool.
func (service *dispatchService) GoOffline(ctx context.Context, driverID string) error {
	if err := service.presence.SetOffline(ctx, driverID); err != nil {
		service.logger.Error(ctx, "driver_offline_failed", "Failed to mark driver offline", err, map[string]any{
			"driver_id": driverID,
		})
		return err
	}
	observability.DriversOnline.Dec()

	service.publishPresence(ctx, driverID, false, nil)
	service.logger.Info(ctx, "driver_offline", "Driver is offline", map[string]any{
		"driver_id": driverID,
	})
	return nil
}

// UpdateLocation refreshes a driver's last known fix.
func (service *dispatchService) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	loc, err := geo.NewCoordinate(lat, lng)
	if err != nil {
		return err
	}
	if err := service.presence.UpdateLocation(ctx, driverID, loc); err != nil {
		service.logger.Error(ctx, "location_update_failed", "Failed to update driver location", err, map[string]any{
			"driver_id": driverID,
		})
		return err
	}
	return nil
}

// publishPresence mirrors presence changes onto the broker for auditors.
func (service *dispatchService) publishPresence(ctx context.Context, driverID string, online bool, loc *geo.Coordinate) {
	msg := contracts.PresenceMessage{
		DriverID:  driverID,
		Online:    online,
		Timestamp: time.Now().UTC(),
		Envelope:  envelope(generateCorrelationID()),
	}
	if loc != nil {
		msg.Location = &contracts.GeoPoint{Lat: loc.Latitude, Lng: loc.Longitude}
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := service.pub.Publish(contracts.ExchangeDriverTopic, contracts.RouteDriverPresence, body); err != nil {
		service.logger.Error(ctx, "presence_publish_failed", "Failed to publish presence change", err, map[string]any{
			"driver_id": driverID,
		})
	}
}
