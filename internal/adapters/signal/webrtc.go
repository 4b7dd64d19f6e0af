package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/maxklim/huddle/internal/app"
	"github.com/maxklim/huddle/internal/domain"
)

// handleSignalRelay decodes the envelope of an offer/answer/candidate and
// hands the untouched payload to the relay.
func (ctl *Controller) handleSignalRelay(cc *app.ConnContext, c *wsConn, kind string, data []byte) {
	type relayPayload struct {
		Type    string          `json:"type"`
		Target  string          `json:"target"`
		Payload json.RawMessage `json:"payload"`
	}
	var p relayPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("kind", kind).Msg("bad relay payload")
		ctl.sendError(c, "bad_payload")
		return
	}

	target := domain.ConnID(p.Target)
	var err error
	switch kind {
	case "offer":
		err = ctl.Relay.Offer(cc.ConnID, target, p.Payload)
	case "answer":
		err = ctl.Relay.Answer(cc.ConnID, target, p.Payload)
	case "candidate":
		err = ctl.Relay.ICECandidate(cc.ConnID, target, p.Payload)
	}
	if err != nil {
		ctl.sendError(c, wireCode(err))
	}
}
