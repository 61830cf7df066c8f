package rooms

import "time"

// Status is the lifecycle phase of a room. Deleted is only ever reported for
// rooms that are no longer in the registry.
type Status int

const (
	StatusActive Status = iota
	StatusClosed
	StatusDeleted
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusClosed:
		return "closed"
	case StatusDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// StatusAt reports the phase of a room that expires at expiresAt.
func StatusAt(now, expiresAt time.Time) Status {
	if now.Before(expiresAt) {
		return StatusActive
	}
	return StatusClosed
}

// CanReopen reports whether the one-time reopen transition is allowed.
func CanReopen(now, expiresAt time.Time, reopened bool) bool {
	return !reopened && StatusAt(now, expiresAt) == StatusClosed
}
