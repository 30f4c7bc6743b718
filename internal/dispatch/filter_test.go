package dispatch

import (
	"testing"
	"time"

	"trip-dispatch/internal/domain/driver"
	"trip-dispatch/internal/domain/geo"
	"trip-dispatch/internal/domain/trip"
)

// latOffsetForKM converts a north-south distance to a latitude delta.
// One degree of latitude is ~111.195 km everywhere on the sphere.
func latOffsetForKM(km float64) float64 {
	return km / 111.194926644
}

func presenceAt(id string, pickup geo.Coordinate, km float64) driver.Presence {
	return driver.Presence{
		DriverID: id,
		Online:   true,
		HasFix:   true,
		Location: geo.Coordinate{Latitude: pickup.Latitude + latOffsetForKM(km), Longitude: pickup.Longitude},
	}
}

func TestCandidatesForTrip_RadiusFilter(t *testing.T) {
	pickup := geo.Coordinate{Latitude: 40.0, Longitude: 69.0}

	pool := []driver.Presence{
		presenceAt("driver-c", pickup, 7.0),
		presenceAt("driver-a", pickup, 2.0),
		presenceAt("driver-b", pickup, 4.9),
	}

	got := CandidatesForTrip(pickup, pool, 5.0, nil)

	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].DriverID != "driver-a" || got[1].DriverID != "driver-b" {
		t.Fatalf("expected [driver-a driver-b] nearest first, got [%s %s]", got[0].DriverID, got[1].DriverID)
	}
	if got[0].DistanceKM >= got[1].DistanceKM {
		t.Fatalf("candidates not sorted by distance: %f then %f", got[0].DistanceKM, got[1].DistanceKM)
	}
}

func TestCandidatesForTrip_BoundaryInclusive(t *testing.T) {
	pickup := geo.Coordinate{Latitude: 40.0, Longitude: 69.0}
	edge := presenceAt("driver-edge", pickup, 5.0)

	// use the exact computed distance as the radius so the comparison is
	// bit-for-bit equal
	radius := geo.HaversineKM(edge.Location, pickup)

	got := CandidatesForTrip(pickup, []driver.Presence{edge}, radius, nil)
	if len(got) != 1 {
		t.Fatalf("driver at exactly the radius boundary must be a candidate, got %d", len(got))
	}
}

func TestCandidatesForTrip_SkipsUnusablePresence(t *testing.T) {
	pickup := geo.Coordinate{Latitude: 40.0, Longitude: 69.0}

	offline := presenceAt("driver-offline", pickup, 1.0)
	offline.Online = false

	noFix := presenceAt("driver-nofix", pickup, 1.0)
	noFix.HasFix = false

	pool := []driver.Presence{offline, noFix, presenceAt("driver-ok", pickup, 1.0)}

	got := CandidatesForTrip(pickup, pool, 5.0, nil)
	if len(got) != 1 || got[0].DriverID != "driver-ok" {
		t.Fatalf("expected only driver-ok, got %+v", got)
	}
}

func TestCandidatesForTrip_IgnoredSet(t *testing.T) {
	pickup := geo.Coordinate{Latitude: 40.0, Longitude: 69.0}
	pool := []driver.Presence{
		presenceAt("driver-a", pickup, 1.0),
		presenceAt("driver-b", pickup, 2.0),
	}

	ignored := map[string]struct{}{"driver-a": {}}

	got := CandidatesForTrip(pickup, pool, 5.0, ignored)
	if len(got) != 1 || got[0].DriverID != "driver-b" {
		t.Fatalf("ignored driver must be excluded, got %+v", got)
	}
}

func TestCandidatesForTrip_TieBreakByDriverID(t *testing.T) {
	pickup := geo.Coordinate{Latitude: 40.0, Longitude: 69.0}
	pool := []driver.Presence{
		presenceAt("driver-z", pickup, 3.0),
		presenceAt("driver-a", pickup, 3.0),
	}

	got := CandidatesForTrip(pickup, pool, 5.0, nil)
	if len(got) != 2 || got[0].DriverID != "driver-a" {
		t.Fatalf("equal distances must tie-break by driver id, got %+v", got)
	}
}

func openTripAt(id string, at geo.Coordinate, km float64, requestedAt time.Time) *trip.Trip {
	return &trip.Trip{
		ID:          id,
		Status:      trip.StatusRequested,
		Pickup:      geo.Coordinate{Latitude: at.Latitude + latOffsetForKM(km), Longitude: at.Longitude},
		RequestedAt: requestedAt,
	}
}

func TestBestTripForDriver(t *testing.T) {
	at := geo.Coordinate{Latitude: 40.0, Longitude: 69.0}
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	near := openTripAt("trip-near", at, 1.0, base)
	far := openTripAt("trip-far", at, 4.0, base.Add(-time.Hour))
	outside := openTripAt("trip-outside", at, 9.0, base.Add(-2*time.Hour))

	got := BestTripForDriver(at, []*trip.Trip{far, outside, near}, 5.0, nil)
	if got == nil || got.Trip.ID != "trip-near" {
		t.Fatalf("expected trip-near, got %+v", got)
	}
}

func TestBestTripForDriver_SkipsNonRequestedAndIgnored(t *testing.T) {
	at := geo.Coordinate{Latitude: 40.0, Longitude: 69.0}
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	taken := openTripAt("trip-taken", at, 1.0, base)
	taken.Status = trip.StatusAccepted

	seen := openTripAt("trip-seen", at, 2.0, base)
	fresh := openTripAt("trip-fresh", at, 3.0, base)

	got := BestTripForDriver(at, []*trip.Trip{taken, seen, fresh}, 5.0, map[string]struct{}{"trip-seen": {}})
	if got == nil || got.Trip.ID != "trip-fresh" {
		t.Fatalf("expected trip-fresh, got %+v", got)
	}
}

func TestBestTripForDriver_NothingInRange(t *testing.T) {
	at := geo.Coordinate{Latitude: 40.0, Longitude: 69.0}
	only := openTripAt("trip-outside", at, 20.0, time.Now())

	if got := BestTripForDriver(at, []*trip.Trip{only}, 5.0, nil); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}
