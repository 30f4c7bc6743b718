// Package dispatch holds the pure matching logic: which drivers see which
// trips. It has no I/O; callers feed it presence and trip data and publish
// the result.
package dispatch

import (
	"errors"
	"sort"

	"trip-dispatch/internal/domain/driver"
	"trip-dispatch/internal/domain/geo"
	"trip-dispatch/internal/domain/trip"
)

// ErrNoDriversNearby classifies an empty candidate set. It reaches the rider
// as a soft note on the open request, never as a hard failure.
var ErrNoDriversNearby = errors.New("no drivers nearby")

// Candidate is one driver eligible for a trip, with the distance to pickup.
type Candidate struct {
	DriverID   string
	DistanceKM float64
	Location   geo.Coordinate
}

// CandidatesForTrip filters the driver pool down to the candidates a new
// trip request should be broadcast to. The radius boundary is inclusive: a
// driver at exactly radiusKM is a candidate. Drivers without a usable fix
// and drivers in the ignored set are skipped. The result is sorted by
// distance, nearest first, with driver id as a stable tie-break.
func CandidatesForTrip(pickup geo.Coordinate, pool []driver.Presence, radiusKM float64, ignored map[string]struct{}) []Candidate {
	var out []Candidate
	for _, p := range pool {
		if !p.Locatable() {
			continue
		}
		if _, skip := ignored[p.DriverID]; skip {
			continue
		}
		dist := geo.HaversineKM(p.Location, pickup)
		if dist > radiusKM {
			continue
		}
		out = append(out, Candidate{
			DriverID:   p.DriverID,
			DistanceKM: dist,
			Location:   p.Location,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceKM != out[j].DistanceKM {
			return out[i].DistanceKM < out[j].DistanceKM
		}
		return out[i].DriverID < out[j].DriverID
	})
	return out
}

// RankedTrip pairs a requested trip with the driver's distance to its pickup.
type RankedTrip struct {
	Trip       *trip.Trip
	DistanceKM float64
}

// BestTripForDriver picks the single best open trip for a polling driver:
// the nearest pickup within radiusKM, oldest request winning a distance tie,
// trip id as the final tie-break. Returns nil when nothing is in range.
func BestTripForDriver(at geo.Coordinate, open []*trip.Trip, radiusKM float64, ignored map[string]struct{}) *RankedTrip {
	var best *RankedTrip
	for _, t := range open {
		if t.Status != trip.StatusRequested {
			continue
		}
		if _, skip := ignored[t.ID]; skip {
			continue
		}
		dist := geo.HaversineKM(at, t.Pickup)
		if dist > radiusKM {
			continue
		}
		cand := &RankedTrip{Trip: t, DistanceKM: dist}
		if best == nil || closerThan(cand, best) {
			best = cand
		}
	}
	return best
}

func closerThan(a, b *RankedTrip) bool {
	if a.DistanceKM != b.DistanceKM {
		return a.DistanceKM < b.DistanceKM
	}
	if !a.Trip.RequestedAt.Equal(b.Trip.RequestedAt) {
		return a.Trip.RequestedAt.Before(b.Trip.RequestedAt)
	}
	return a.Trip.ID < b.Trip.ID
}
