package trip

import (
	"errors"
	"strings"
)

// Status is a trip status as stored in the `trips` table.
type Status string

const (
	StatusRequested Status = "REQUESTED"
	StatusAccepted  Status = "ACCEPTED"
	StatusArrived   Status = "ARRIVED"
	StatusStarted   Status = "STARTED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

var ErrInvalidStatus = errors.New("invalid trip status")

// ParseStatus normalizes (uppercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the allowed trip status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusRequested, StatusAccepted, StatusArrived, StatusStarted, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// CanTransitionTo specifies if the status can transition to the next status.
// A trip that is underway (STARTED) can only finish; it cannot be cancelled.
func (status Status) CanTransitionTo(next Status) bool {
	switch status {
	case StatusRequested:
		return next == StatusAccepted || next == StatusCancelled

	case StatusAccepted:
		return next == StatusArrived || next == StatusCancelled

	case StatusArrived:
		return next == StatusStarted || next == StatusCancelled

	case StatusStarted:
		return next == StatusCompleted

	case StatusCompleted, StatusCancelled:
		return false

	default:
		return false
	}
}

// Terminal indicates if the status is in a terminal state.
func (status Status) Terminal() bool {
	return status == StatusCompleted || status == StatusCancelled
}

// Rank places statuses on the lifecycle total order used for latest-wins
// reconciliation. CANCELLED is handled separately as an absorbing state.
func (status Status) Rank() int {
	switch status {
	case StatusRequested:
		return 0
	case StatusAccepted:
		return 1
	case StatusArrived:
		return 2
	case StatusStarted:
		return 3
	case StatusCompleted:
		return 4
	default:
		return -1
	}
}

// Supersedes reports whether an observed status should replace the current one.
// CANCELLED always wins once observed; otherwise the higher rank wins. Equal
// statuses do not supersede each other, which makes duplicate delivery a no-op.
func (status Status) Supersedes(current Status) bool {
	if current == StatusCancelled {
		return false
	}
	if status == StatusCancelled {
		return true
	}
	return status.Rank() > current.Rank()
}
