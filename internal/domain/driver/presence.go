package driver

import (
	"time"

	"trip-dispatch/internal/domain/geo"
)

// Presence is a driver's ephemeral availability record: online flag plus the
// last known location fix. It is session state, not part of the authoritative
// trip record.
type Presence struct {
	DriverID  string
	Online    bool
	HasFix    bool
	Location  geo.Coordinate
	LastFixAt time.Time
}

// Locatable reports whether the driver can be considered for dispatch at all.
// Drivers without a location fix never appear in candidate output.
func (p Presence) Locatable() bool {
	return p.Online && p.HasFix
}
