package domain

import "errors"

var (
	// ErrRoomNotFound: join referenced a room with no backing meeting.
	ErrRoomNotFound = errors.New("room not found")
	// ErrNotInRoom: relay/toggle/leave without an active room membership.
	ErrNotInRoom = errors.New("not in a room")
	// ErrInvalidMessage: relay message missing target or payload.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrPersistenceFailure: durable write failed; the triggering join is
	// rolled back entirely.
	ErrPersistenceFailure = errors.New("persistence failure")
)
