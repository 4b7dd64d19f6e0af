package app

import (
	"github.com/rs/zerolog/log"

	"github.com/maxklim/huddle/internal/core"
	"github.com/maxklim/huddle/internal/domain"
	"github.com/maxklim/huddle/internal/metrics"
)

// Broadcaster applies audio/video/screen-share toggles to the sender's own
// participant record and announces the delta. Toggles run under the room's
// ops lock so flag mutations and their broadcasts keep one order.
type Broadcaster struct {
	Registry *core.Registry
	Coord    *Coordinator
}

func NewBroadcaster(reg *core.Registry, coord *Coordinator) *Broadcaster {
	return &Broadcaster{Registry: reg, Coord: coord}
}

func (b *Broadcaster) ToggleAudio(connID domain.ConnID, enabled bool) error {
	return b.toggle(connID, core.AttrAudio, enabled)
}

func (b *Broadcaster) ToggleVideo(connID domain.ConnID, enabled bool) error {
	return b.toggle(connID, core.AttrVideo, enabled)
}

func (b *Broadcaster) ToggleScreenShare(connID domain.ConnID, enabled bool) error {
	return b.toggle(connID, core.AttrScreenShare, enabled)
}

func (b *Broadcaster) toggle(connID domain.ConnID, attr core.MediaAttr, enabled bool) error {
	roomID, ok := b.Coord.RoomOf(connID)
	if !ok {
		return domain.ErrNotInRoom
	}
	room, ok := b.Registry.Get(roomID)
	if !ok {
		return domain.ErrNotInRoom
	}
	room.LockOps()
	defer room.UnlockOps()

	m, ok := room.SetMediaFlag(connID, attr, enabled)
	if !ok {
		return domain.ErrNotInRoom
	}

	ev := MediaChangedEvent{
		Type:   EventMediaChanged,
		ConnID: connID,
		UserID: m.Participant.UserID,
	}
	// Only the changed attribute goes on the wire.
	switch attr {
	case core.AttrAudio:
		ev.AudioEnabled = &enabled
	case core.AttrVideo:
		ev.VideoEnabled = &enabled
	case core.AttrScreenShare:
		ev.ScreenShareEnabled = &enabled
	}
	b.Coord.broadcastEvent(room, connID, ev)
	metrics.MediaToggles.WithLabelValues(string(attr)).Inc()
	log.Debug().Str("module", "app.media").Str("room", string(roomID)).
		Str("conn", string(connID)).Str("attr", string(attr)).Bool("enabled", enabled).Msg("media toggled")
	return nil
}
