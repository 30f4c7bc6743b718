package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"trip-dispatch/internal/domain/trip"
	"trip-dispatch/internal/general/jwt"
	"trip-dispatch/internal/ports"
)

// SubmitOfferBody is the JSON body for POST /trips/{trip_id}/offers.
type SubmitOfferBody struct {
	Price float64 `json:"price"`
}

func (handler *DispatchHTTPHandler) handleSubmitOffer(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)

	tripID := strings.TrimSpace(r.PathValue("trip_id"))
	if tripID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "trip_id is required", nil)
		return
	}

	var body SubmitOfferBody
	if !handler.decodeJSON(ctx, w, r, &body) {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	result, err := handler.svc.SubmitOffer(callCtx, ports.SubmitOfferInput{
		TripID:   tripID,
		DriverID: claims.Subject,
		Price:    body.Price,
	})
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusCreated, result)
}

func (handler *DispatchHTTPHandler) handleAcceptOffer(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	tripID := strings.TrimSpace(r.PathValue("trip_id"))
	offerID := strings.TrimSpace(r.PathValue("offer_id"))
	if tripID == "" || offerID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "trip_id and offer_id are required", nil)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	result, err := handler.svc.AcceptOffer(callCtx, tripID, offerID)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, result)
}

func (handler *DispatchHTTPHandler) handleRejectOffer(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	offerID := strings.TrimSpace(r.PathValue("offer_id"))
	if offerID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "offer_id is required", nil)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	if err := handler.svc.RejectOffer(callCtx, offerID); err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, map[string]string{"offer_id": offerID, "state": "REJECTED"})
}

// OfferView is the wire shape of one open offer.
type OfferView struct {
	OfferID   string    `json:"offer_id"`
	TripID    string    `json:"trip_id"`
	DriverID  string    `json:"driver_id"`
	Price     float64   `json:"price"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

func (handler *DispatchHTTPHandler) handleListOffers(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	tripID := strings.TrimSpace(r.PathValue("trip_id"))
	if tripID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "trip_id is required", nil)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	offers, err := handler.svc.ListOpenOffers(callCtx, tripID)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	views := make([]OfferView, 0, len(offers))
	for _, o := range offers {
		views = append(views, OfferView{
			OfferID:   o.ID,
			TripID:    o.TripID,
			DriverID:  o.DriverID,
			Price:     o.Price,
			State:     o.State.String(),
			CreatedAt: o.CreatedAt,
		})
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{"trip_id": tripID, "offers": views})
}

// UpdateStatusBody is the JSON body for POST /trips/{trip_id}/status.
type UpdateStatusBody struct {
	Status string `json:"status"`
}

func (handler *DispatchHTTPHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)

	tripID := strings.TrimSpace(r.PathValue("trip_id"))
	if tripID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "trip_id is required", nil)
		return
	}

	var body UpdateStatusBody
	if !handler.decodeJSON(ctx, w, r, &body) {
		return
	}

	next, err := trip.ParseStatus(body.Status)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "status must be one of: ARRIVED, STARTED, COMPLETED", err)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	if err := handler.svc.UpdateTripStatus(callCtx, tripID, next, claims.Subject); err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, map[string]string{
		"trip_id": tripID,
		"status":  next.String(),
	})
}
