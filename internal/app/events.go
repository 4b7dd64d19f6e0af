package app

import (
	"encoding/json"

	"github.com/maxklim/huddle/internal/core"
	"github.com/maxklim/huddle/internal/domain"
)

// Outbound event types.
const (
	EventJoined                 = "joined"
	EventParticipantJoined      = "participant_joined"
	EventParticipantReconnected = "participant_reconnected"
	EventParticipantLeft        = "participant_left"
	EventMediaChanged           = "media_changed"
	EventHostChanged            = "host_changed"
	EventOffer                  = "offer"
	EventAnswer                 = "answer"
	EventCandidate              = "candidate"
	EventError                  = "error"
	EventPong                   = "pong"
	EventLeft                   = "left"
)

// JoinedEvent goes to the joiner only: own view plus everyone already there.
type JoinedEvent struct {
	Type         string                   `json:"type"`
	Self         domain.ParticipantView   `json:"self"`
	Participants []domain.ParticipantView `json:"participants"`
}

// ParticipantEvent announces a fresh join or a reconnect to the rest of the
// room; the type field tells clients apart so reconnects don't re-render.
type ParticipantEvent struct {
	Type        string                 `json:"type"`
	Participant domain.ParticipantView `json:"participant"`
}

type ParticipantLeftEvent struct {
	Type        string        `json:"type"`
	ConnID      domain.ConnID `json:"conn_id"`
	UserID      domain.UserID `json:"user_id"`
	DisplayName string        `json:"display_name"`
}

// MediaChangedEvent carries exactly one flag; receivers must only update
// attributes present in the message.
type MediaChangedEvent struct {
	Type               string        `json:"type"`
	ConnID             domain.ConnID `json:"conn_id"`
	UserID             domain.UserID `json:"user_id"`
	AudioEnabled       *bool         `json:"audio_enabled,omitempty"`
	VideoEnabled       *bool         `json:"video_enabled,omitempty"`
	ScreenShareEnabled *bool         `json:"screen_share_enabled,omitempty"`
}

type HostChangedEvent struct {
	Type   string        `json:"type"`
	ConnID domain.ConnID `json:"conn_id"`
	UserID domain.UserID `json:"user_id"`
}

// SignalEvent is a relayed negotiation message, payload untouched. Polite is
// set on forwarded offers only and is computed for the receiver, so both
// peers resolve offer glare identically.
type SignalEvent struct {
	Type    string          `json:"type"`
	From    domain.ConnID   `json:"from"`
	Polite  *bool           `json:"polite,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func encodeEvent(v any) (core.Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return core.Frame(b), nil
}
