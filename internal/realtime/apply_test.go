package realtime

import (
	"sync"
	"testing"

	"trip-dispatch/internal/domain/trip"
	"trip-dispatch/internal/general/contracts"
)

func snapWith(status trip.Status) contracts.TripSnapshot {
	return contracts.TripSnapshot{
		TripID:     "trip-1",
		Status:     status.String(),
		CustomerID: "customer-1",
	}
}

func TestApply_SeedsFirstSnapshot(t *testing.T) {
	view := NewTripView()
	if !view.Apply(snapWith(trip.StatusRequested)) {
		t.Fatal("first snapshot must seed the view")
	}
	got, ok := view.Current()
	if !ok || got.Status != "REQUESTED" {
		t.Fatalf("unexpected view state: %+v ok=%v", got, ok)
	}
}

func TestApply_DuplicateIsNoop(t *testing.T) {
	view := NewTripView()
	view.Apply(snapWith(trip.StatusAccepted))
	if view.Apply(snapWith(trip.StatusAccepted)) {
		t.Fatal("re-applying the same status must be a no-op")
	}
}

func TestApply_OutOfOrderDoesNotRegress(t *testing.T) {
	view := NewTripView()
	view.Apply(snapWith(trip.StatusStarted))

	// a late push carrying an older state arrives after the poll caught up
	if view.Apply(snapWith(trip.StatusAccepted)) {
		t.Fatal("stale snapshot must not regress the view")
	}
	got, _ := view.Current()
	if got.Status != "STARTED" {
		t.Fatalf("view regressed to %s", got.Status)
	}
}

func TestApply_ForwardProgress(t *testing.T) {
	view := NewTripView()
	order := []trip.Status{
		trip.StatusRequested,
		trip.StatusAccepted,
		trip.StatusArrived,
		trip.StatusStarted,
		trip.StatusCompleted,
	}
	for _, s := range order {
		if !view.Apply(snapWith(s)) {
			t.Fatalf("advancing to %s must apply", s)
		}
	}
	if !view.Terminal() {
		t.Fatal("completed view must be terminal")
	}
}

func TestApply_CancelledAbsorbs(t *testing.T) {
	view := NewTripView()
	view.Apply(snapWith(trip.StatusAccepted))

	if !view.Apply(snapWith(trip.StatusCancelled)) {
		t.Fatal("cancellation must apply over an active status")
	}
	// nothing supersedes a cancelled trip
	if view.Apply(snapWith(trip.StatusArrived)) {
		t.Fatal("no status may supersede CANCELLED")
	}
	if !view.Terminal() {
		t.Fatal("cancelled view must be terminal")
	}
}

func TestApply_ConcurrentPushAndPollConverge(t *testing.T) {
	view := NewTripView()
	view.Apply(snapWith(trip.StatusRequested))

	// push and poll racing with duplicated and reordered snapshots
	feed := []trip.Status{
		trip.StatusAccepted, trip.StatusAccepted, trip.StatusArrived,
		trip.StatusAccepted, trip.StatusStarted, trip.StatusArrived,
		trip.StatusCompleted, trip.StatusStarted,
	}

	var wg sync.WaitGroup
	for _, s := range feed {
		wg.Add(1)
		go func(s trip.Status) {
			defer wg.Done()
			view.Apply(snapWith(s))
		}(s)
	}
	wg.Wait()

	got, _ := view.Current()
	if got.Status != "COMPLETED" {
		t.Fatalf("view must converge to COMPLETED, got %s", got.Status)
	}
}
