package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/maxklim/huddle/internal/core"
	"github.com/maxklim/huddle/internal/domain"
	"github.com/maxklim/huddle/internal/metrics"
	"github.com/maxklim/huddle/internal/store"
)

// ConnContext is the fixed per-connection record built by the gateway at
// authentication time and passed explicitly to every handler. Nothing is ever
// stashed on the transport object itself.
type ConnContext struct {
	ConnID      domain.ConnID
	UserID      domain.UserID
	DisplayName string
	Signal      core.SignalConnection
}

// JoinResult is what the joiner gets back: its own public view and the views
// of everyone already in the room.
type JoinResult struct {
	Self        domain.ParticipantView
	Others      []domain.ParticipantView
	Reconnected bool
}

// Coordinator is the join/leave/reconnect state machine and the single writer
// of room membership. All membership mutation for one room happens under that
// room's ops lock; rooms never block each other.
type Coordinator struct {
	Registry     *core.Registry
	Store        store.MeetingStore
	Negotiations *core.NegotiationTable
	Policy       Policy

	mu    sync.RWMutex
	assoc map[domain.ConnID]domain.RoomID
}

func NewCoordinator(reg *core.Registry, st store.MeetingStore, neg *core.NegotiationTable, pol Policy) *Coordinator {
	return &Coordinator{
		Registry:     reg,
		Store:        st,
		Negotiations: neg,
		Policy:       pol,
		assoc:        make(map[domain.ConnID]domain.RoomID),
	}
}

// RoomOf returns the room a connection is currently associated with.
func (c *Coordinator) RoomOf(connID domain.ConnID) (domain.RoomID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.assoc[connID]
	return id, ok
}

func (c *Coordinator) bind(connID domain.ConnID, roomID domain.RoomID) {
	c.mu.Lock()
	c.assoc[connID] = roomID
	c.mu.Unlock()
}

func (c *Coordinator) detach(connID domain.ConnID) {
	c.mu.Lock()
	delete(c.assoc, connID)
	c.mu.Unlock()
}

// lockRoom obtains the room and its ops lock, retrying if a concurrent leave
// emptied and removed the room between lookup and lock.
func (c *Coordinator) lockRoom(roomID domain.RoomID) *core.Room {
	for {
		room := c.Registry.GetOrCreate(roomID)
		room.LockOps()
		if cur, ok := c.Registry.Get(roomID); ok && cur == room {
			return room
		}
		room.UnlockOps()
	}
}

// Join implements the join protocol: resolve the backing meeting, then fresh
// join, idempotent re-join or reconnect depending on what the room already
// holds for this user. The participant is registered in-memory before the
// durable write so a concurrent second join for the same user observes it;
// a failed write unwinds the registration completely.
func (c *Coordinator) Join(ctx context.Context, cc *ConnContext, roomID domain.RoomID, displayName string) (JoinResult, error) {
	meeting, err := c.Store.MeetingExists(ctx, roomID)
	if err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Str("room", string(roomID)).Msg("meeting lookup failed")
		metrics.JoinsTotal.WithLabelValues("persistence_failure").Inc()
		return JoinResult{}, domain.ErrPersistenceFailure
	}
	if meeting == nil {
		metrics.JoinsTotal.WithLabelValues("room_not_found").Inc()
		return JoinResult{}, domain.ErrRoomNotFound
	}

	if displayName == "" {
		displayName = cc.DisplayName
	}
	if displayName == "" {
		displayName = "guest"
	}

	// A connection holds membership in at most one room. Switching rooms
	// runs the full leave protocol against the old room first, before the
	// new room's lock is taken, so the two rooms are never locked together.
	if cur, ok := c.RoomOf(cc.ConnID); ok && cur != roomID {
		log.Info().Str("module", "app.coordinator").Str("conn", string(cc.ConnID)).
			Str("from_room", string(cur)).Str("room", string(roomID)).Msg("switching rooms")
		c.Leave(ctx, cc.ConnID)
	}

	room := c.lockRoom(roomID)
	defer room.UnlockOps()

	if existing, ok := room.MemberByUser(cc.UserID); ok {
		if existing.Participant.ConnID == cc.ConnID {
			// Duplicate client-side join emission; no mutation, no broadcast.
			return JoinResult{Self: existing.Participant.View(), Others: room.Snapshot(cc.ConnID)}, nil
		}
		return c.reconnect(room, cc, existing), nil
	}

	return c.freshJoin(ctx, room, cc, meeting, displayName)
}

func (c *Coordinator) freshJoin(ctx context.Context, room *core.Room, cc *ConnContext, meeting *domain.MeetingInfo, displayName string) (JoinResult, error) {
	first := room.Len() == 0
	isHost := first || cc.UserID == meeting.HostUserID

	// The externally designated host displaces a first-joiner host.
	var demoted *core.Member
	if isHost && !first {
		if h, ok := room.Host(); ok && h.Participant.UserID != cc.UserID {
			room.SetHost(h.Participant.ConnID, false)
			demoted = h
		}
	}

	p := domain.NewParticipant(cc.ConnID, cc.UserID, displayName, isHost)
	room.Add(core.NewMember(p, cc.Signal))
	c.bind(cc.ConnID, room.ID)

	if err := c.Store.RecordParticipantJoin(ctx, room.ID, p.UserID, p.DisplayName, p.IsHost); err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Str("room", string(room.ID)).
			Str("user", string(p.UserID)).Msg("join persistence failed, rolling back")
		room.Remove(cc.ConnID)
		c.detach(cc.ConnID)
		if demoted != nil {
			room.SetHost(demoted.Participant.ConnID, true)
		}
		if room.Len() == 0 {
			c.Registry.Remove(room.ID)
		}
		c.updateGauges()
		metrics.JoinsTotal.WithLabelValues("persistence_failure").Inc()
		return JoinResult{}, domain.ErrPersistenceFailure
	}

	if first {
		if err := c.Store.SetMeetingStatus(ctx, room.ID, domain.StatusActive); err != nil {
			log.Error().Err(err).Str("module", "app.coordinator").Str("room", string(room.ID)).Msg("meeting activation failed")
		}
	}

	res := JoinResult{Self: p.View(), Others: room.Snapshot(cc.ConnID)}
	c.broadcastEvent(room, cc.ConnID, ParticipantEvent{Type: EventParticipantJoined, Participant: p.View()})
	if demoted != nil {
		c.broadcastEvent(room, "", HostChangedEvent{Type: EventHostChanged, ConnID: p.ConnID, UserID: p.UserID})
	}
	c.updateGauges()
	metrics.JoinsTotal.WithLabelValues("joined").Inc()
	log.Info().Str("module", "app.coordinator").Str("room", string(room.ID)).
		Str("conn", string(cc.ConnID)).Str("user", string(cc.UserID)).Bool("host", isHost).Msg("joined")
	return res, nil
}

// reconnect supersedes the stale connection for the same user: identity, host
// flag and media flags carry over; the old association is detached first so a
// late disconnect of the old socket is a no-op leave.
func (c *Coordinator) reconnect(room *core.Room, cc *ConnContext, stale *core.Member) JoinResult {
	oldConnID := stale.Participant.ConnID

	p := stale.Participant.Reconnected(cc.ConnID)
	room.Add(core.NewMember(p, cc.Signal))
	room.Remove(oldConnID)

	c.detach(oldConnID)
	c.bind(cc.ConnID, room.ID)
	c.Negotiations.DropConn(oldConnID)
	stale.Signal.Close()

	res := JoinResult{Self: p.View(), Others: room.Snapshot(cc.ConnID), Reconnected: true}
	c.broadcastEvent(room, cc.ConnID, ParticipantEvent{Type: EventParticipantReconnected, Participant: p.View()})
	metrics.JoinsTotal.WithLabelValues("reconnected").Inc()
	log.Info().Str("module", "app.coordinator").Str("room", string(room.ID)).
		Str("old_conn", string(oldConnID)).Str("conn", string(cc.ConnID)).
		Str("user", string(cc.UserID)).Msg("reconnected")
	return res
}

// Leave removes the connection's participant, if any. Persistence on the exit
// path is best-effort: a departed slot must never appear occupied, so the
// in-memory removal always completes.
func (c *Coordinator) Leave(ctx context.Context, connID domain.ConnID) bool {
	roomID, ok := c.RoomOf(connID)
	if !ok {
		return false
	}
	room, ok := c.Registry.Get(roomID)
	if !ok {
		c.detach(connID)
		return false
	}
	room.LockOps()
	defer room.UnlockOps()

	m, ok := room.Remove(connID)
	if !ok {
		c.detach(connID)
		return false
	}
	c.detach(connID)
	c.Negotiations.DropConn(connID)

	p := m.Participant
	if err := c.Store.RecordParticipantLeave(ctx, roomID, p.UserID); err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Str("room", string(roomID)).
			Str("user", string(p.UserID)).Msg("leave persistence failed")
	}

	c.broadcastEvent(room, connID, ParticipantLeftEvent{
		Type:        EventParticipantLeft,
		ConnID:      p.ConnID,
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
	})

	if room.Len() == 0 {
		if err := c.Store.SetMeetingStatus(ctx, roomID, domain.StatusEnded); err != nil {
			log.Error().Err(err).Str("module", "app.coordinator").Str("room", string(roomID)).Msg("meeting end failed")
		}
		c.Registry.Remove(roomID)
	} else if p.IsHost {
		if promoted := room.PromoteEarliest(); promoted != nil {
			c.broadcastEvent(room, "", HostChangedEvent{
				Type:   EventHostChanged,
				ConnID: promoted.Participant.ConnID,
				UserID: promoted.Participant.UserID,
			})
		}
	}

	c.updateGauges()
	log.Info().Str("module", "app.coordinator").Str("room", string(roomID)).
		Str("conn", string(connID)).Str("user", string(p.UserID)).Msg("left")
	return true
}

// broadcastEvent encodes and fans out, then lets the policy deal with slow
// consumers. Kicking closes the transport; the gateway's read loop turns that
// into an ordinary leave on its own goroutine.
func (c *Coordinator) broadcastEvent(room *core.Room, from domain.ConnID, v any) {
	frame, err := encodeEvent(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Msg("encode event")
		return
	}
	res := room.Broadcast(from, frame)
	if c.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		if c.Policy.OnBackpressure(room.ID, slow) == KickMember {
			log.Warn().Str("module", "app.coordinator").Str("room", string(room.ID)).
				Str("conn", string(slow.Participant.ConnID)).Msg("kicking slow consumer")
			slow.Signal.Close()
		}
	}
}

func (c *Coordinator) updateGauges() {
	metrics.RoomsActive.Set(float64(c.Registry.Count()))
	c.mu.RLock()
	metrics.ParticipantsConnected.Set(float64(len(c.assoc)))
	c.mu.RUnlock()
}
