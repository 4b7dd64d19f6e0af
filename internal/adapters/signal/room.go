package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/maxklim/huddle/internal/app"
	"github.com/maxklim/huddle/internal/domain"
)

func (ctl *Controller) handleJoin(cc *app.ConnContext, c *wsConn, data []byte) {
	type joinPayload struct {
		Type string `json:"type"`
		Room string `json:"room"`
		Name string `json:"name,omitempty"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(c, "bad_payload")
		return
	}
	if p.Room == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	if !ctl.limiter.Allow(cc.UserID) {
		log.Warn().Str("module", "signal").Str("user", string(cc.UserID)).Msg("join rate limited")
		ctl.sendError(c, "rate_limited")
		return
	}

	res, err := ctl.Coord.Join(context.Background(), cc, domain.RoomID(p.Room), p.Name)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(cc.ConnID)).
			Str("room", p.Room).Msg("join rejected")
		ctl.sendError(c, wireCode(err))
		return
	}

	ctl.sendJSON(c, app.JoinedEvent{
		Type:         app.EventJoined,
		Self:         res.Self,
		Participants: res.Others,
	})
}

func (ctl *Controller) handleLeave(cc *app.ConnContext, c *wsConn) {
	ctl.Coord.Leave(context.Background(), cc.ConnID)
	// Acked whether or not a room association existed; leave is idempotent.
	ctl.sendJSON(c, struct {
		Type string `json:"type"`
	}{app.EventLeft})
}
