package app

import (
	"github.com/maxklim/huddle/internal/core"
	"github.com/maxklim/huddle/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a member whose send buffer keeps filling up.
type Policy interface {
	OnBackpressure(roomID domain.RoomID, member *core.Member) BackpressureAction
}

// KickSlowPolicy disconnects slow consumers; the transport close runs the
// normal leave path.
type KickSlowPolicy struct{}

func (KickSlowPolicy) OnBackpressure(domain.RoomID, *core.Member) BackpressureAction {
	return KickMember
}
