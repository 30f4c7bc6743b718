package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"trip-dispatch/internal/general/contracts"
	"trip-dispatch/internal/general/jwt"
)

// LocationBody carries a driver location fix.
type LocationBody struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (handler *DispatchHTTPHandler) handleGoOnline(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)

	var body LocationBody
	if !handler.decodeJSON(ctx, w, r, &body) {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	if err := handler.svc.GoOnline(callCtx, claims.Subject, body.Latitude, body.Longitude); err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, map[string]string{
		"driver_id": claims.Subject,
		"status":    "online",
	})
}

func (handler *DispatchHTTPHandler) handleGoOffline(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)

	callCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	if err := handler.svc.GoOffline(callCtx, claims.Subject); err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, map[string]string{
		"driver_id": claims.Subject,
		"status":    "offline",
	})
}

// handleNextTrip is the driver polling fallback: GET /drivers/next-trip with
// lat, lng and an optional comma-separated ignore list of trip ids.
func (handler *DispatchHTTPHandler) handleNextTrip(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "lat must be a number", err)
		return
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "lng must be a number", err)
		return
	}

	var ignored []string
	if raw := strings.TrimSpace(q.Get("ignore")); raw != "" {
		ignored = strings.Split(raw, ",")
	}

	callCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	next, err := handler.svc.NextTripForDriver(callCtx, lat, lng, ignored)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	if next == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{
		"trip":        contracts.SnapshotOf(next.Trip),
		"distance_km": next.DistanceKM,
	})
}

func (handler *DispatchHTTPHandler) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	claims := jwt.RequireClaims(r)

	var body LocationBody
	if !handler.decodeJSON(ctx, w, r, &body) {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	if err := handler.svc.UpdateLocation(callCtx, claims.Subject, body.Latitude, body.Longitude); err != nil {
		handler.serviceError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
