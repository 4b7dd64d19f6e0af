package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/maxklim/huddle/internal/core"
	"github.com/maxklim/huddle/internal/domain"
	"github.com/maxklim/huddle/internal/metrics"
)

// Relay forwards offer/answer/ICE-candidate messages between two peers in the
// same room. It never looks inside a payload. Only senders are validated for
// membership; an unknown target means the message is dropped, not an error.
type Relay struct {
	Registry     *core.Registry
	Coord        *Coordinator
	Negotiations *core.NegotiationTable
}

func NewRelay(reg *core.Registry, coord *Coordinator, neg *core.NegotiationTable) *Relay {
	return &Relay{Registry: reg, Coord: coord, Negotiations: neg}
}

func (r *Relay) Offer(connID, target domain.ConnID, payload json.RawMessage) error {
	return r.forward(EventOffer, connID, target, payload)
}

func (r *Relay) Answer(connID, target domain.ConnID, payload json.RawMessage) error {
	return r.forward(EventAnswer, connID, target, payload)
}

func (r *Relay) ICECandidate(connID, target domain.ConnID, payload json.RawMessage) error {
	return r.forward(EventCandidate, connID, target, payload)
}

func (r *Relay) forward(kind string, connID, target domain.ConnID, payload json.RawMessage) error {
	roomID, ok := r.Coord.RoomOf(connID)
	if !ok {
		return domain.ErrNotInRoom
	}
	if target == "" || len(payload) == 0 {
		return domain.ErrInvalidMessage
	}
	room, ok := r.Registry.Get(roomID)
	if !ok {
		return domain.ErrNotInRoom
	}
	tm, ok := room.MemberByConn(target)
	if !ok {
		// Fire-and-forget: the target raced out of the room or never existed.
		log.Debug().Str("module", "app.relay").Str("kind", kind).
			Str("from", string(connID)).Str("target", string(target)).Msg("target not in room, dropping")
		return nil
	}

	ev := SignalEvent{Type: kind, From: connID, Payload: payload}
	switch kind {
	case EventOffer:
		r.Negotiations.OfferSent(connID, target)
		// The receiver's side of the politeness assignment rides along so
		// both peers resolve crossed offers the same way.
		polite := core.Polite(target, connID)
		ev.Polite = &polite
	case EventAnswer:
		r.Negotiations.AnswerSent(connID, target)
	}

	frame, err := encodeEvent(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("encode signal")
		return nil
	}
	if err := tm.Signal.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "app.relay").Str("kind", kind).
			Str("target", string(target)).Msg("signal dropped")
		return nil
	}
	metrics.SignalsRelayed.WithLabelValues(kind).Inc()
	return nil
}
