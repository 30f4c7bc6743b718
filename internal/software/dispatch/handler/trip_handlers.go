package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"trip-dispatch/internal/general/contracts"
	"trip-dispatch/internal/general/jwt"
	"trip-dispatch/internal/ports"
)

const handlerTimeout = 5 * time.Second

// RequestTripBody is the JSON body for POST /trips.
type RequestTripBody struct {
	PickupLatitude       float64 `json:"pickup_latitude"`
	PickupLongitude      float64 `json:"pickup_longitude"`
	PickupAddress        string  `json:"pickup_address"`
	DestinationLatitude  float64 `json:"destination_latitude"`
	DestinationLongitude float64 `json:"destination_longitude"`
	DestinationAddress   string  `json:"destination_address"`
	RequestedPrice       float64 `json:"requested_price"`
	PaymentMethod        string  `json:"payment_method"`
}

func (handler *DispatchHTTPHandler) handleRequestTrip(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)

	var body RequestTripBody
	if !handler.decodeJSON(ctx, w, r, &body) {
		return
	}

	in := ports.RequestTripInput{
		CustomerID:           claims.Subject,
		PickupLatitude:       body.PickupLatitude,
		PickupLongitude:      body.PickupLongitude,
		PickupAddress:        body.PickupAddress,
		DestinationLatitude:  body.DestinationLatitude,
		DestinationLongitude: body.DestinationLongitude,
		DestinationAddress:   body.DestinationAddress,
		RequestedPrice:       body.RequestedPrice,
		PaymentMethod:        body.PaymentMethod,
	}

	callCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	result, err := handler.svc.RequestTrip(callCtx, in)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusCreated, result)
}

func (handler *DispatchHTTPHandler) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	tripID := strings.TrimSpace(r.PathValue("trip_id"))
	if tripID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "trip_id is required", nil)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	t, err := handler.svc.GetTrip(callCtx, tripID)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, contracts.SnapshotOf(t))
}

// CancelTripBody is the JSON body for POST /trips/{trip_id}/cancel.
type CancelTripBody struct {
	Reason string `json:"reason"`
}

func (handler *DispatchHTTPHandler) handleCancelTrip(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	tripID := strings.TrimSpace(r.PathValue("trip_id"))
	if tripID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "trip_id is required", nil)
		return
	}

	var body CancelTripBody
	if !handler.decodeJSON(ctx, w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Reason) == "" {
		body.Reason = "cancelled by rider"
	}

	callCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	result, err := handler.svc.CancelTrip(callCtx, tripID, body.Reason)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, result)
}
