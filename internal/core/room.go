package core

import (
	"sync"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/rs/zerolog/log"

	"github.com/maxklim/huddle/internal/domain"
)

// MediaAttr names the single flag a toggle mutates.
type MediaAttr string

const (
	AttrAudio       MediaAttr = "audio_enabled"
	AttrVideo       MediaAttr = "video_enabled"
	AttrScreenShare MediaAttr = "screen_share_enabled"
)

// Room is a threadsafe in-memory member set, insertion-ordered by join and
// double-indexed by connection id and user id. It never closes adapter-owned
// transport resources.
//
// The state mutex guards the maps; the ops mutex is the room's serialization
// point for join/leave/toggle and is held by the coordinator across the
// persistence call of a join, so a room queues behind its own pending I/O
// without blocking any other room.
type Room struct {
	ID domain.RoomID

	ops sync.Mutex

	mu      sync.RWMutex
	members *orderedmap.OrderedMap[domain.ConnID, *Member]
	byUser  map[domain.UserID]domain.ConnID
}

func NewRoom(id domain.RoomID) *Room {
	return &Room{
		ID:      id,
		members: orderedmap.NewOrderedMap[domain.ConnID, *Member](),
		byUser:  make(map[domain.UserID]domain.ConnID),
	}
}

func (r *Room) LockOps()   { r.ops.Lock() }
func (r *Room) UnlockOps() { r.ops.Unlock() }

func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.members.Len()
}

func (r *Room) Add(m *Member) {
	p := m.Participant
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members.Set(p.ConnID, m)
	r.byUser[p.UserID] = p.ConnID
	log.Info().Str("module", "core.room").Str("room", string(r.ID)).
		Str("conn", string(p.ConnID)).Str("user", string(p.UserID)).Msg("member added")
}

func (r *Room) Remove(connID domain.ConnID) (*Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members.Get(connID)
	if !ok {
		return nil, false
	}
	r.members.Delete(connID)
	// A reconnect re-points byUser at the new conn before the stale record
	// is dropped; only clear the index when it still points at us.
	if r.byUser[m.Participant.UserID] == connID {
		delete(r.byUser, m.Participant.UserID)
	}
	log.Info().Str("module", "core.room").Str("room", string(r.ID)).
		Str("conn", string(connID)).Msg("member removed")
	return m, true
}

func (r *Room) MemberByConn(connID domain.ConnID) (*Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.members.Get(connID)
}

func (r *Room) MemberByUser(userID domain.UserID) (*Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.byUser[userID]
	if !ok {
		return nil, false
	}
	return r.members.Get(connID)
}

// SetMediaFlag mutates a single media flag on the member's own record.
func (r *Room) SetMediaFlag(connID domain.ConnID, attr MediaAttr, enabled bool) (*Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members.Get(connID)
	if !ok {
		return nil, false
	}
	switch attr {
	case AttrAudio:
		m.Participant.AudioEnabled = enabled
	case AttrVideo:
		m.Participant.VideoEnabled = enabled
	case AttrScreenShare:
		m.Participant.ScreenShareEnabled = enabled
	}
	return m, true
}

// SetHost flips the host flag on one member.
func (r *Room) SetHost(connID domain.ConnID, isHost bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.members.Get(connID); ok {
		m.Participant.IsHost = isHost
	}
}

// Host returns the current host, if any.
func (r *Room) Host() (*Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for el := r.members.Front(); el != nil; el = el.Next() {
		if el.Value.Participant.IsHost {
			return el.Value, true
		}
	}
	return nil, false
}

// PromoteEarliest hands the host flag to the earliest-joined member.
// Returns nil when the room is empty.
func (r *Room) PromoteEarliest() *Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	el := r.members.Front()
	if el == nil {
		return nil
	}
	el.Value.Participant.IsHost = true
	return el.Value
}

// Snapshot returns the public views of all members except the excluded
// connection, in join order.
func (r *Room) Snapshot(exclude domain.ConnID) []domain.ParticipantView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ParticipantView, 0, r.members.Len())
	for el := r.members.Front(); el != nil; el = el.Next() {
		if el.Key == exclude {
			continue
		}
		out = append(out, el.Value.Participant.View())
	}
	return out
}

// Broadcast fans a frame out to every member but the sender. Delivery is
// fire-and-forget; members whose send buffer is full are reported back.
func (r *Room) Broadcast(from domain.ConnID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for el := r.members.Front(); el != nil; el = el.Next() {
		if el.Key == from {
			continue
		}
		if err := el.Value.Signal.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, el.Value)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.ID)).
		Str("from", string(from)).Int("sent_to", res.SentTo).
		Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
