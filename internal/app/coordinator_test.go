package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxklim/huddle/internal/app"
	"github.com/maxklim/huddle/internal/core"
	"github.com/maxklim/huddle/internal/domain"
	"github.com/maxklim/huddle/internal/store"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return errors.New("backpressure")
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// events decodes every received frame into a loose map, in order.
func (f *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.frames))
	for _, fr := range f.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(fr, &m))
		out = append(out, m)
	}
	return out
}

func (f *fakeConn) eventTypes(t *testing.T) []string {
	t.Helper()
	evs := f.events(t)
	types := make([]string, len(evs))
	for i, ev := range evs {
		types[i] = ev["type"].(string)
	}
	return types
}

type failingStore struct {
	store.MeetingStore
	failJoin bool
}

func (s *failingStore) RecordParticipantJoin(ctx context.Context, roomID domain.RoomID, userID domain.UserID, displayName string, isHost bool) error {
	if s.failJoin {
		return errors.New("db down")
	}
	return s.MeetingStore.RecordParticipantJoin(ctx, roomID, userID, displayName, isHost)
}

type fixture struct {
	reg   *core.Registry
	st    *store.LocalStore
	neg   *core.NegotiationTable
	coord *app.Coordinator
	relay *app.Relay
	media *app.Broadcaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := core.NewRegistry()
	st := store.NewLocalStore()
	neg := core.NewNegotiationTable()
	coord := app.NewCoordinator(reg, st, neg, app.KickSlowPolicy{})
	return &fixture{
		reg:   reg,
		st:    st,
		neg:   neg,
		coord: coord,
		relay: app.NewRelay(reg, coord, neg),
		media: app.NewBroadcaster(reg, coord),
	}
}

func (f *fixture) meeting(t *testing.T, roomID, hostUserID string) {
	t.Helper()
	require.NoError(t, f.st.CreateMeeting(context.Background(), domain.RoomID(roomID), domain.UserID(hostUserID)))
}

func (f *fixture) conn(connID, userID string) *app.ConnContext {
	return &app.ConnContext{
		ConnID:      domain.ConnID(connID),
		UserID:      domain.UserID(userID),
		DisplayName: userID,
		Signal:      &fakeConn{},
	}
}

func (f *fixture) join(t *testing.T, cc *app.ConnContext, roomID string) app.JoinResult {
	t.Helper()
	res, err := f.coord.Join(context.Background(), cc, domain.RoomID(roomID), cc.DisplayName)
	require.NoError(t, err)
	return res
}

func TestJoin_RoomNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.Join(context.Background(), f.conn("c1", "alice"), "R1", "alice")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	_, ok := f.reg.Get("R1")
	assert.False(t, ok, "failed join must not leave a room behind")
}

func TestJoin_HostAssignment(t *testing.T) {
	f := newFixture(t)
	f.meeting(t, "R2", "u1")

	c1 := f.conn("c1", "u1")
	res1 := f.join(t, c1, "R2")
	assert.True(t, res1.Self.IsHost)
	assert.Empty(t, res1.Others)

	m, ok := f.st.Meeting("R2")
	require.True(t, ok)
	assert.Equal(t, domain.StatusActive, m.Status, "first join activates the meeting")

	c2 := f.conn("c2", "u2")
	res2 := f.join(t, c2, "R2")
	assert.False(t, res2.Self.IsHost)
	require.Len(t, res2.Others, 1)
	assert.Equal(t, domain.UserID("u1"), res2.Others[0].UserID)
	assert.True(t, res2.Others[0].IsHost)

	evs := c1.Signal.(*fakeConn).events(t)
	require.Len(t, evs, 1)
	assert.Equal(t, app.EventParticipantJoined, evs[0]["type"])
}

func TestJoin_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.meeting(t, "R2", "u1")

	c1 := f.conn("c1", "u1")
	c2 := f.conn("c2", "u2")
	first := f.join(t, c1, "R2")
	f.join(t, c2, "R2")

	before := len(c2.Signal.(*fakeConn).events(t))
	again := f.join(t, c1, "R2")

	assert.Equal(t, first.Self, again.Self, "second join returns the same view")
	assert.Len(t, c2.Signal.(*fakeConn).events(t), before, "no additional broadcast")
}

func TestJoin_Reconnect(t *testing.T) {
	f := newFixture(t)
	f.meeting(t, "R2", "u1")

	c1 := f.conn("c1", "u1")
	c2 := f.conn("c2", "u2")
	f.join(t, c1, "R2")
	f.join(t, c2, "R2")

	// u2 toggles audio off before reconnecting; the flag must survive.
	require.NoError(t, f.media.ToggleAudio("c2", false))

	c2b := f.conn("c2b", "u2")
	res := f.join(t, c2b, "R2")
	assert.True(t, res.Reconnected)
	assert.Equal(t, domain.ConnID("c2b"), res.Self.ConnID)
	assert.False(t, res.Self.IsHost)
	assert.False(t, res.Self.AudioEnabled, "media flags carry over on reconnect")
	assert.Equal(t, "u2", res.Self.DisplayName)

	types := c1.Signal.(*fakeConn).eventTypes(t)
	assert.Contains(t, types, app.EventParticipantReconnected)
	assert.NotContains(t, types[1:], app.EventParticipantJoined,
		"reconnect must not look like a fresh join to other members")

	assert.True(t, c2.Signal.(*fakeConn).isClosed(), "stale transport is closed")

	t.Run("late disconnect of the stale connection is a no-op", func(t *testing.T) {
		assert.False(t, f.coord.Leave(context.Background(), "c2"))
		room, ok := f.reg.Get("R2")
		require.True(t, ok)
		assert.Equal(t, 2, room.Len())
	})

	t.Run("host reconnect keeps the host flag", func(t *testing.T) {
		c1b := f.conn("c1b", "u1")
		res := f.join(t, c1b, "R2")
		assert.True(t, res.Reconnected)
		assert.True(t, res.Self.IsHost)
	})
}

func TestJoin_PersistenceRollback(t *testing.T) {
	reg := core.NewRegistry()
	local := store.NewLocalStore()
	failing := &failingStore{MeetingStore: local, failJoin: true}
	neg := core.NewNegotiationTable()
	coord := app.NewCoordinator(reg, failing, neg, nil)
	require.NoError(t, local.CreateMeeting(context.Background(), "R2", "u1"))

	cc := &app.ConnContext{ConnID: "c1", UserID: "u1", DisplayName: "u1", Signal: &fakeConn{}}
	_, err := coord.Join(context.Background(), cc, "R2", "u1")
	assert.ErrorIs(t, err, domain.ErrPersistenceFailure)

	_, ok := reg.Get("R2")
	assert.False(t, ok, "rolled-back join must not leave a ghost room")
	_, ok = coord.RoomOf("c1")
	assert.False(t, ok, "rolled-back join must not leave an association")

	t.Run("join succeeds once the store recovers", func(t *testing.T) {
		failing.failJoin = false
		res, err := coord.Join(context.Background(), cc, "R2", "u1")
		require.NoError(t, err)
		assert.True(t, res.Self.IsHost)
	})
}

func TestJoin_SwitchRoomsLeavesOldRoom(t *testing.T) {
	f := newFixture(t)
	f.meeting(t, "RA", "u1")
	f.meeting(t, "RB", "u9")

	c1 := f.conn("c1", "u1")
	c2 := f.conn("c2", "u2")
	f.join(t, c1, "RA")
	f.join(t, c2, "RA")

	res := f.join(t, c1, "RB")
	assert.Empty(t, res.Others)
	assert.False(t, res.Reconnected)

	roomA, ok := f.reg.Get("RA")
	require.True(t, ok)
	assert.Equal(t, 1, roomA.Len(), "old room holds only the remaining member")
	_, ok = roomA.MemberByConn("c1")
	assert.False(t, ok, "switcher is gone from the old room")

	rid, ok := f.coord.RoomOf("c1")
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("RB"), rid)

	types := c2.Signal.(*fakeConn).eventTypes(t)
	assert.Contains(t, types, app.EventParticipantLeft, "old room observes a leave")
	assert.Contains(t, types, app.EventHostChanged, "u1 held host of the old room")

	t.Run("disconnect after switching empties only the new room", func(t *testing.T) {
		require.True(t, f.coord.Leave(context.Background(), "c1"))
		_, ok := f.reg.Get("RB")
		assert.False(t, ok)
		roomA, ok := f.reg.Get("RA")
		require.True(t, ok)
		assert.Equal(t, 1, roomA.Len())
	})

	t.Run("sole member switching empties the old room", func(t *testing.T) {
		require.True(t, f.coord.Leave(context.Background(), "c2"))
		c3 := f.conn("c3", "u3")
		f.join(t, c3, "RA")
		f.join(t, c3, "RB")
		_, ok := f.reg.Get("RA")
		assert.False(t, ok, "old room vanishes once its last member switches away")
	})
}

func TestLeave_Sequence(t *testing.T) {
	f := newFixture(t)
	f.meeting(t, "R2", "u1")

	c1 := f.conn("c1", "u1")
	c2 := f.conn("c2", "u2")
	f.join(t, c1, "R2")
	f.join(t, c2, "R2")

	assert.True(t, f.coord.Leave(context.Background(), "c1"))
	types := c2.Signal.(*fakeConn).eventTypes(t)
	assert.Contains(t, types, app.EventParticipantLeft)

	assert.True(t, f.coord.Leave(context.Background(), "c2"))
	_, ok := f.reg.Get("R2")
	assert.False(t, ok, "emptied room is removed from the registry")

	m, ok := f.st.Meeting("R2")
	require.True(t, ok)
	assert.Equal(t, domain.StatusEnded, m.Status)

	rec, ok := f.st.Participant("R2", "u1")
	require.True(t, ok)
	assert.NotNil(t, rec.LeftAt)

	t.Run("leave without membership is a no-op", func(t *testing.T) {
		assert.False(t, f.coord.Leave(context.Background(), "ghost"))
	})
}

func TestJoin_PersistenceRollbackRestoresDemotedHost(t *testing.T) {
	reg := core.NewRegistry()
	local := store.NewLocalStore()
	failing := &failingStore{MeetingStore: local}
	neg := core.NewNegotiationTable()
	coord := app.NewCoordinator(reg, failing, neg, nil)
	require.NoError(t, local.CreateMeeting(context.Background(), "R2", "u2"))

	c1 := &app.ConnContext{ConnID: "c1", UserID: "u1", DisplayName: "u1", Signal: &fakeConn{}}
	res, err := coord.Join(context.Background(), c1, "R2", "u1")
	require.NoError(t, err)
	require.True(t, res.Self.IsHost, "first joiner holds host")

	failing.failJoin = true
	c2 := &app.ConnContext{ConnID: "c2", UserID: "u2", DisplayName: "u2", Signal: &fakeConn{}}
	_, err = coord.Join(context.Background(), c2, "R2", "u2")
	assert.ErrorIs(t, err, domain.ErrPersistenceFailure)

	room, ok := reg.Get("R2")
	require.True(t, ok)
	assert.Equal(t, 1, room.Len())
	h, ok := room.Host()
	require.True(t, ok, "demoted first joiner gets host back on rollback")
	assert.Equal(t, domain.UserID("u1"), h.Participant.UserID)
	assert.True(t, h.Participant.IsHost)

	t.Run("designated host takes over once the store recovers", func(t *testing.T) {
		failing.failJoin = false
		res, err := coord.Join(context.Background(), c2, "R2", "u2")
		require.NoError(t, err)
		assert.True(t, res.Self.IsHost)
		hosts := 0
		for _, v := range room.Snapshot("") {
			if v.IsHost {
				hosts++
				assert.Equal(t, domain.UserID("u2"), v.UserID)
			}
		}
		assert.Equal(t, 1, hosts)
	})
}

func TestLeave_HostPromotion(t *testing.T) {
	f := newFixture(t)
	f.meeting(t, "R2", "u1")

	c1 := f.conn("c1", "u1")
	c2 := f.conn("c2", "u2")
	c3 := f.conn("c3", "u3")
	f.join(t, c1, "R2")
	f.join(t, c2, "R2")
	f.join(t, c3, "R2")

	require.True(t, f.coord.Leave(context.Background(), "c1"))

	room, ok := f.reg.Get("R2")
	require.True(t, ok)
	h, ok := room.Host()
	require.True(t, ok, "a non-empty room keeps exactly one host")
	assert.Equal(t, domain.UserID("u2"), h.Participant.UserID, "earliest joiner is promoted")

	types := c3.Signal.(*fakeConn).eventTypes(t)
	assert.Contains(t, types, app.EventHostChanged)
}

func TestJoin_DesignatedHostDisplacesFirstJoiner(t *testing.T) {
	f := newFixture(t)
	f.meeting(t, "R2", "u2")

	c1 := f.conn("c1", "u1")
	res1 := f.join(t, c1, "R2")
	assert.True(t, res1.Self.IsHost, "first joiner holds host until the designated host arrives")

	c2 := f.conn("c2", "u2")
	res2 := f.join(t, c2, "R2")
	assert.True(t, res2.Self.IsHost)

	room, ok := f.reg.Get("R2")
	require.True(t, ok)
	hosts := 0
	for _, v := range room.Snapshot("") {
		if v.IsHost {
			hosts++
			assert.Equal(t, domain.UserID("u2"), v.UserID)
		}
	}
	assert.Equal(t, 1, hosts)

	types := c1.Signal.(*fakeConn).eventTypes(t)
	assert.Contains(t, types, app.EventHostChanged)
}
