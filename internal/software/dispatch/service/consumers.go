package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"trip-dispatch/internal/domain/trip"
	"trip-dispatch/internal/general/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RunBackgroundConsumers starts the broker consumers and keeps them running
// until ctx is cancelled. Each consumer loop reconnects with a small delay
// when its channel dies.
func (service *dispatchService) RunBackgroundConsumers(ctx context.Context) {
	if service.rabbitmq == nil {
		service.logger.Info(ctx, "consumers_disabled", "No RabbitMQ client, background consumers disabled", nil)
		return
	}

	go service.consumeLoop(ctx, contracts.QueueDriverStatus, "dispatch-driver-status", service.handleDriverStatus)
	go service.consumeLoop(ctx, contracts.QueueTripStatus, "dispatch-trip-status", service.handleTripStatusEcho)
}

func (service *dispatchService) consumeLoop(ctx context.Context, queue, tag string, handler func(context.Context, amqp.Delivery) error) {
	for {
		err := service.rabbitmq.Consume(ctx, queue, tag, 8, handler)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			service.logger.Error(ctx, "consumer_stopped", "Queue consumer stopped, restarting", err, map[string]any{
				"queue": queue,
			})
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

// handleDriverStatus applies progress reports arriving over the broker.
// The apply is idempotent: a redelivered report fails its status
// precondition and is acked as a no-op rather than retried forever.
func (service *dispatchService) handleDriverStatus(ctx context.Context, d amqp.Delivery) error {
	var msg contracts.DriverStatusMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		service.logger.Error(ctx, "driver_status_decode_failed", "Dropping malformed driver status message", err, nil)
		return nil // ack; redelivery cannot fix bad json
	}

	next := trip.Status(msg.Status)
	err := service.UpdateTripStatus(ctx, msg.TripID, next, msg.DriverID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, trip.ErrStaleTransition), errors.Is(err, trip.ErrNotFound):
		// duplicate or late report; the authoritative state already moved on
		service.logger.Debug(ctx, "driver_status_stale", "Ignoring superseded driver status report", map[string]any{
			"trip_id": msg.TripID,
			"status":  msg.Status,
		})
		return nil
	default:
		return err
	}
}

// handleTripStatusEcho re-emits broker status messages onto the local
// realtime hub, so subscribers attached to this instance see transitions
// performed by other instances.
func (service *dispatchService) handleTripStatusEcho(ctx context.Context, d amqp.Delivery) error {
	var msg contracts.TripStatusMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		service.logger.Error(ctx, "trip_status_decode_failed", "Dropping malformed trip status message", err, nil)
		return nil
	}
	if msg.Envelope.Producer == producerID {
		// our own publication already went to local subscribers
		return nil
	}

	service.realtime.Publish(contracts.TopicTrip(msg.Trip.TripID), msg)
	if msg.Trip.DriverID != "" {
		service.realtime.Publish(contracts.TopicDriverInbox(msg.Trip.DriverID), msg)
	}
	return nil
}
