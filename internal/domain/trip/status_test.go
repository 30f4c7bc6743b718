package trip

import "testing"

func TestStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusRequested, StatusAccepted, true},
		{StatusRequested, StatusCancelled, true},
		{StatusRequested, StatusArrived, false},
		{StatusRequested, StatusStarted, false},

		{StatusAccepted, StatusArrived, true},
		{StatusAccepted, StatusCancelled, true},
		{StatusAccepted, StatusStarted, false},
		{StatusAccepted, StatusRequested, false},

		{StatusArrived, StatusStarted, true},
		{StatusArrived, StatusCancelled, true},
		{StatusArrived, StatusCompleted, false},

		// underway trips can only finish
		{StatusStarted, StatusCompleted, true},
		{StatusStarted, StatusCancelled, false},

		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusRequested, false},
		{StatusCancelled, StatusCancelled, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestStatus_Terminal(t *testing.T) {
	for _, s := range []Status{StatusRequested, StatusAccepted, StatusArrived, StatusStarted} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestStatus_Supersedes(t *testing.T) {
	cases := []struct {
		observed, current Status
		want              bool
	}{
		// forward progress wins
		{StatusAccepted, StatusRequested, true},
		{StatusStarted, StatusAccepted, true},
		{StatusCompleted, StatusStarted, true},

		// duplicates and stale observations are no-ops
		{StatusAccepted, StatusAccepted, false},
		{StatusAccepted, StatusStarted, false},
		{StatusRequested, StatusCompleted, false},

		// CANCELLED absorbs everything and is never replaced
		{StatusCancelled, StatusRequested, true},
		{StatusCancelled, StatusStarted, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusCancelled, false},
	}

	for _, tc := range cases {
		if got := tc.observed.Supersedes(tc.current); got != tc.want {
			t.Errorf("%s supersedes %s: got %v, want %v", tc.observed, tc.current, got, tc.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("  started ")
	if err != nil {
		t.Fatalf("ParseStatus: %v", err)
	}
	if s != StatusStarted {
		t.Fatalf("got %s, want STARTED", s)
	}

	if _, err := ParseStatus("TELEPORTED"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
