// Package store is the persistence adapter for durable meeting and
// participant records. It is consulted and updated by the room coordinator
// but is never the source of truth for live membership.
package store

import (
	"context"
	"errors"

	"github.com/maxklim/huddle/internal/domain"
)

var ErrMeetingExists = errors.New("meeting already exists")

// MeetingStore encapsulates the durable record of meetings and their
// participants. MeetingExists returns (nil, nil) for an unknown room.
type MeetingStore interface {
	MeetingExists(ctx context.Context, roomID domain.RoomID) (*domain.MeetingInfo, error)
	RecordParticipantJoin(ctx context.Context, roomID domain.RoomID, userID domain.UserID, displayName string, isHost bool) error
	RecordParticipantLeave(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
	SetMeetingStatus(ctx context.Context, roomID domain.RoomID, status domain.MeetingStatus) error
}

// MeetingCreator is implemented by stores that can also mint meeting records.
// Production deployments normally own meeting creation elsewhere; the dev
// HTTP surface uses this when the configured store supports it.
type MeetingCreator interface {
	CreateMeeting(ctx context.Context, roomID domain.RoomID, hostUserID domain.UserID) error
}
