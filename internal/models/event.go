package models

import "time"

const (
	RoomCreated  = "created"
	RoomReopened = "reopened"
	RoomClosed   = "closed"
	RoomDeleted  = "deleted"
)

// RoomEvent records a lifecycle transition for the activity journal.
type RoomEvent struct {
	RoomID  string    `json:"roomId"`
	Kind    string    `json:"kind"`
	ActorID string    `json:"actorId,omitempty"`
	At      time.Time `json:"at"`
}
