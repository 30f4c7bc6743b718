package trip

import "time"

// DefaultFreeWaitingWindow is how long the driver waits at pickup for free.
const DefaultFreeWaitingWindow = 5 * time.Minute

// WaitingState tells whether waiting at the pickup point is still free.
type WaitingState string

const (
	WaitingFree     WaitingState = "FREE"
	WaitingBillable WaitingState = "BILLABLE"
)

// Waiting is the derived waiting-time view. It is never persisted; any client
// recomputes it from ArrivedAt, which keeps it correct across reconnects and
// process restarts.
type Waiting struct {
	State     WaitingState
	Remaining time.Duration // time left in the free window (FREE only)
	Accrued   time.Duration // billable time accumulated (BILLABLE only)
}

// ComputeWaiting derives the waiting state at `now` for a driver that arrived
// at `arrivedAt`. At elapsed == freeWindow exactly the state is BILLABLE.
func ComputeWaiting(arrivedAt, now time.Time, freeWindow time.Duration) Waiting {
	if freeWindow <= 0 {
		freeWindow = DefaultFreeWaitingWindow
	}

	elapsed := now.Sub(arrivedAt)
	if elapsed < 0 {
		elapsed = 0
	}

	if elapsed < freeWindow {
		return Waiting{State: WaitingFree, Remaining: freeWindow - elapsed}
	}
	return Waiting{State: WaitingBillable, Accrued: elapsed - freeWindow}
}

// WaitingAt derives the waiting state for this trip, or false if the driver
// has not arrived yet.
func (trip *Trip) WaitingAt(now time.Time, freeWindow time.Duration) (Waiting, bool) {
	if trip.ArrivedAt == nil {
		return Waiting{}, false
	}
	return ComputeWaiting(*trip.ArrivedAt, now, freeWindow), true
}
