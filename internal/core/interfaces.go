package core

import "github.com/maxklim/huddle/internal/domain"

// Frame is a raw encoded event ready for the wire.
type Frame []byte

// SignalConnection abstracts the system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Member binds a participant record to its transport endpoint.
// This is what a room stores and fans out to.
type Member struct {
	Participant *domain.Participant
	Signal      SignalConnection
}

func NewMember(p *domain.Participant, sig SignalConnection) *Member {
	return &Member{Participant: p, Signal: sig}
}

// PublishResult reports delivery stats/backpressure to the caller.
type PublishResult struct {
	SentTo  int
	Dropped []*Member
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
}
