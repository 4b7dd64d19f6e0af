package domain

import "time"

type (
	RoomID string
	UserID string
	ConnID string
)

const MaxDisplayNameLen = 64

// Participant is one live connection's membership in a room. ConnID is
// ephemeral (one per transport connection); UserID survives reconnects.
type Participant struct {
	ConnID             ConnID
	UserID             UserID
	DisplayName        string
	IsHost             bool
	AudioEnabled       bool
	VideoEnabled       bool
	ScreenShareEnabled bool
	JoinedAt           time.Time
}

// NewParticipant avoids raw literals in adapters and keeps the media-flag
// defaults (audio and video on, screen share off) in one place.
func NewParticipant(connID ConnID, userID UserID, displayName string, isHost bool) *Participant {
	if len(displayName) > MaxDisplayNameLen {
		displayName = displayName[:MaxDisplayNameLen]
	}
	return &Participant{
		ConnID:       connID,
		UserID:       userID,
		DisplayName:  displayName,
		IsHost:       isHost,
		AudioEnabled: true,
		VideoEnabled: true,
		JoinedAt:     time.Now(),
	}
}

// Reconnected returns the replacement record for a fresh connection of the
// same user: identity, host flag and media flags carry over, the connection
// id and join timestamp do not.
func (p *Participant) Reconnected(connID ConnID) *Participant {
	return &Participant{
		ConnID:             connID,
		UserID:             p.UserID,
		DisplayName:        p.DisplayName,
		IsHost:             p.IsHost,
		AudioEnabled:       p.AudioEnabled,
		VideoEnabled:       p.VideoEnabled,
		ScreenShareEnabled: p.ScreenShareEnabled,
		JoinedAt:           time.Now(),
	}
}

// ParticipantView is the public shape serialized into events. No transport
// fields, no negotiation state.
type ParticipantView struct {
	ConnID             ConnID `json:"conn_id"`
	UserID             UserID `json:"user_id"`
	DisplayName        string `json:"display_name"`
	IsHost             bool   `json:"is_host"`
	AudioEnabled       bool   `json:"audio_enabled"`
	VideoEnabled       bool   `json:"video_enabled"`
	ScreenShareEnabled bool   `json:"screen_share_enabled"`
}

func (p *Participant) View() ParticipantView {
	return ParticipantView{
		ConnID:             p.ConnID,
		UserID:             p.UserID,
		DisplayName:        p.DisplayName,
		IsHost:             p.IsHost,
		AudioEnabled:       p.AudioEnabled,
		VideoEnabled:       p.VideoEnabled,
		ScreenShareEnabled: p.ScreenShareEnabled,
	}
}
