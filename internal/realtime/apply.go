// Package realtime keeps a client-side trip view converged against the
// authoritative store. Snapshots arrive over two paths that race each other:
// pushed events and periodic polls. Applying is idempotent, so whichever
// path delivers first wins and the loser is a no-op.
package realtime

import (
	"sync"

	"trip-dispatch/internal/domain/trip"
	"trip-dispatch/internal/general/contracts"
)

// TripView is the last known state of one trip. Safe for concurrent use.
type TripView struct {
	mu       sync.Mutex
	snapshot contracts.TripSnapshot
	seeded   bool
}

// NewTripView starts an empty view; the first applied snapshot seeds it.
func NewTripView() *TripView {
	return &TripView{}
}

// Apply merges an incoming snapshot. It returns true when the view changed.
// A snapshot is applied only when its status supersedes the current one in
// the trip lifecycle order, so duplicates and out-of-order arrivals from
// the push and poll paths are absorbed without regressing the view.
func (view *TripView) Apply(snap contracts.TripSnapshot) bool {
	view.mu.Lock()
	defer view.mu.Unlock()

	if !view.seeded {
		view.snapshot = snap
		view.seeded = true
		return true
	}

	next := trip.Status(snap.Status)
	current := trip.Status(view.snapshot.Status)
	if !next.Supersedes(current) {
		return false
	}

	view.snapshot = snap
	return true
}

// Current returns a copy of the latest snapshot and whether one exists.
func (view *TripView) Current() (contracts.TripSnapshot, bool) {
	view.mu.Lock()
	defer view.mu.Unlock()
	return view.snapshot, view.seeded
}

// Terminal reports whether the view has reached a final status.
func (view *TripView) Terminal() bool {
	view.mu.Lock()
	defer view.mu.Unlock()
	return view.seeded && trip.Status(view.snapshot.Status).Terminal()
}
