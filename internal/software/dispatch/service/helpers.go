package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"
	"strings"
	"time"

	"trip-dispatch/internal/general/contracts"
	"trip-dispatch/internal/observability"
)

const producerName = "dispatch-service"

// producerID distinguishes instances so the trip-status echo consumer can
// tell its own publications from a peer's.
var producerID = func() string {
	hn, err := os.Hostname()
	if err != nil || hn == "" {
		hn = "unknown-hostname"
	}
	return producerName + "@" + hn
}()

// generateCorrelationID creates a simple correlation ID for tracing requests.
func generateCorrelationID() string {
	var b [3]byte // 6 hex chars
	_, _ = rand.Read(b[:])
	ts := time.Now().UTC().Format("20060102T150405")
	return "req_" + ts + "_" + hex.EncodeToString(b[:])
}

// envelope stamps an outgoing message with correlation metadata.
func envelope(correlationID string) contracts.Envelope {
	return contracts.Envelope{
		CorrelationID: correlationID,
		Producer:      producerID,
		SentAt:        time.Now().UTC(),
	}
}

// publishTripStatus fans a status change out to both transports: the broker
// (routing key trip.status.{status}) and the trip's realtime topic. Either
// transport failing is logged, never fatal; the poll path repairs misses.
func (service *dispatchService) publishTripStatus(ctx context.Context, snap contracts.TripSnapshot, correlationID string) {
	msg := contracts.TripStatusMessage{
		Type:     "trip_status_changed",
		Trip:     snap,
		Envelope: envelope(correlationID),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		service.logger.Error(ctx, "trip_status_marshal_failed", "Failed to marshal trip status message", err, nil)
		return
	}

	routingKey := contracts.RouteTripStatusPrefix + strings.ToLower(snap.Status)
	if err := service.pub.Publish(contracts.ExchangeTripTopic, routingKey, body); err != nil {
		service.logger.Error(ctx, "trip_status_publish_failed", "Failed to publish trip status to RabbitMQ", err, map[string]any{
			"trip_id":     snap.TripID,
			"routing_key": routingKey,
		})
	} else {
		observability.EventsPublished.WithLabelValues("rabbitmq").Inc()
	}

	service.realtime.Publish(contracts.TopicTrip(snap.TripID), msg)
	if snap.DriverID != "" {
		service.realtime.Publish(contracts.TopicDriverInbox(snap.DriverID), msg)
	}
}

// publishOffer announces offer activity on the trip's offer routing key and
// the trip topic, so the rider sees incoming offers live.
func (service *dispatchService) publishOffer(ctx context.Context, msg contracts.OfferMessage) {
	body, err := json.Marshal(msg)
	if err != nil {
		service.logger.Error(ctx, "offer_marshal_failed", "Failed to marshal offer message", err, nil)
		return
	}

	routingKey := contracts.RouteTripOfferPrefix + msg.TripID
	if err := service.pub.Publish(contracts.ExchangeTripTopic, routingKey, body); err != nil {
		service.logger.Error(ctx, "offer_publish_failed", "Failed to publish offer to RabbitMQ", err, map[string]any{
			"trip_id":     msg.TripID,
			"routing_key": routingKey,
		})
	} else {
		observability.EventsPublished.WithLabelValues("rabbitmq").Inc()
	}

	service.realtime.Publish(contracts.TopicTrip(msg.TripID), msg)
}
