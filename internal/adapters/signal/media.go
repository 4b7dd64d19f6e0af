package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/maxklim/huddle/internal/app"
)

func (ctl *Controller) handleToggle(cc *app.ConnContext, c *wsConn, kind string, data []byte) {
	type togglePayload struct {
		Type    string `json:"type"`
		Enabled bool   `json:"enabled"`
	}
	var p togglePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("kind", kind).Msg("bad toggle payload")
		ctl.sendError(c, "bad_payload")
		return
	}

	var err error
	switch kind {
	case "toggle_audio":
		err = ctl.Media.ToggleAudio(cc.ConnID, p.Enabled)
	case "toggle_video":
		err = ctl.Media.ToggleVideo(cc.ConnID, p.Enabled)
	case "toggle_screen_share":
		err = ctl.Media.ToggleScreenShare(cc.ConnID, p.Enabled)
	}
	if err != nil {
		ctl.sendError(c, wireCode(err))
	}
}
