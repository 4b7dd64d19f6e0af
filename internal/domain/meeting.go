// Package domain contains entities without logic, just meta-data.
package domain

type MeetingStatus string

const (
	StatusScheduled MeetingStatus = "SCHEDULED"
	StatusActive    MeetingStatus = "ACTIVE"
	StatusEnded     MeetingStatus = "ENDED"
)

// MeetingInfo is the durable record backing a room, owned by the external
// persistence layer. Live membership never comes from here.
type MeetingInfo struct {
	RoomID     RoomID
	HostUserID UserID
	Status     MeetingStatus
}
