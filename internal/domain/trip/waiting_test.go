package trip

import (
	"testing"
	"time"
)

func TestComputeWaiting_FreeWindow(t *testing.T) {
	arrived := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	w := ComputeWaiting(arrived, arrived.Add(2*time.Minute), 5*time.Minute)
	if w.State != WaitingFree {
		t.Fatalf("state = %s, want FREE", w.State)
	}
	if w.Remaining != 3*time.Minute {
		t.Fatalf("remaining = %s, want 3m", w.Remaining)
	}
	if w.Accrued != 0 {
		t.Fatalf("accrued = %s, want 0", w.Accrued)
	}
}

func TestComputeWaiting_BoundaryIsBillable(t *testing.T) {
	arrived := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// exactly at the window edge billing starts
	w := ComputeWaiting(arrived, arrived.Add(5*time.Minute), 5*time.Minute)
	if w.State != WaitingBillable {
		t.Fatalf("state at boundary = %s, want BILLABLE", w.State)
	}
	if w.Accrued != 0 {
		t.Fatalf("accrued at boundary = %s, want 0", w.Accrued)
	}

	w = ComputeWaiting(arrived, arrived.Add(7*time.Minute), 5*time.Minute)
	if w.State != WaitingBillable || w.Accrued != 2*time.Minute {
		t.Fatalf("got %+v, want BILLABLE with 2m accrued", w)
	}
}

func TestComputeWaiting_ClockSkewAndDefaults(t *testing.T) {
	arrived := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// now before arrivedAt clamps to zero elapsed
	w := ComputeWaiting(arrived, arrived.Add(-time.Minute), 5*time.Minute)
	if w.State != WaitingFree || w.Remaining != 5*time.Minute {
		t.Fatalf("got %+v, want full free window", w)
	}

	// non-positive window falls back to the default
	w = ComputeWaiting(arrived, arrived.Add(time.Minute), 0)
	if w.State != WaitingFree || w.Remaining != DefaultFreeWaitingWindow-time.Minute {
		t.Fatalf("got %+v, want default window minus 1m", w)
	}
}

func TestTrip_WaitingAt(t *testing.T) {
	tr := newTestTrip(t)

	// waiting is undefined before arrival
	if _, ok := tr.WaitingAt(time.Now().UTC(), 5*time.Minute); ok {
		t.Fatal("waiting should be undefined before arrival")
	}

	if err := tr.Accept("driver-1", 11.0); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := tr.MarkArrived(); err != nil {
		t.Fatalf("arrive: %v", err)
	}

	// recomputation from ArrivedAt survives a process restart: any later
	// reader derives the same state from the same timestamp
	at := tr.ArrivedAt.Add(6 * time.Minute)
	w, ok := tr.WaitingAt(at, 5*time.Minute)
	if !ok {
		t.Fatal("waiting should be defined after arrival")
	}
	if w.State != WaitingBillable || w.Accrued != time.Minute {
		t.Fatalf("got %+v, want BILLABLE with 1m accrued", w)
	}
}
