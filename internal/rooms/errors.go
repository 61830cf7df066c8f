package rooms

import "errors"

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrCapacityExceeded = errors.New("room is full")
	ErrEmptyMessage     = errors.New("message is empty")
	ErrNotRoomOwner     = errors.New("you are not the creator of this room")
	ErrAlreadyReopened  = errors.New("room has already been reopened")
	ErrRoomClosed       = errors.New("room is closed")
	ErrRoomNotClosed    = errors.New("room is still open")
	ErrInvalidRoom      = errors.New("invalid room")
	ErrInvalidExpiry    = errors.New("new expiry must be in the future")
)
