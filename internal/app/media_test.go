package app_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxklim/huddle/internal/app"
	"github.com/maxklim/huddle/internal/domain"
)

func TestToggle_NotInRoom(t *testing.T) {
	f := newFixture(t)

	err := f.media.ToggleAudio("stranger", false)
	assert.ErrorIs(t, err, domain.ErrNotInRoom)
}

func TestToggleVideo_MutatesOwnRecordAndBroadcastsDelta(t *testing.T) {
	f := newFixture(t)
	f.meeting(t, "R2", "u1")
	c1 := f.conn("c1", "u1")
	c2 := f.conn("c2", "u2")
	f.join(t, c1, "R2")
	f.join(t, c2, "R2")

	require.NoError(t, f.media.ToggleVideo("c2", false))

	room, ok := f.reg.Get("R2")
	require.True(t, ok)
	m, ok := room.MemberByConn("c2")
	require.True(t, ok)
	assert.False(t, m.Participant.VideoEnabled)
	assert.True(t, m.Participant.AudioEnabled, "audio untouched in state")

	raw := lastFrameOfType(t, c1.Signal.(*fakeConn), app.EventMediaChanged)
	var ev map[string]any
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, "c2", ev["conn_id"])
	assert.Equal(t, "u2", ev["user_id"])
	assert.Equal(t, false, ev["video_enabled"])
	_, hasAudio := ev["audio_enabled"]
	assert.False(t, hasAudio, "only the changed attribute goes on the wire")
	_, hasScreen := ev["screen_share_enabled"]
	assert.False(t, hasScreen)

	t.Run("toggler gets no echo", func(t *testing.T) {
		for _, ev := range c2.Signal.(*fakeConn).events(t) {
			assert.NotEqual(t, app.EventMediaChanged, ev["type"])
		}
	})
}

func TestToggleScreenShare_IndependentOfOtherFlags(t *testing.T) {
	f := newFixture(t)
	f.meeting(t, "R2", "u1")
	c1 := f.conn("c1", "u1")
	f.join(t, c1, "R2")

	require.NoError(t, f.media.ToggleAudio("c1", false))
	require.NoError(t, f.media.ToggleScreenShare("c1", true))

	room, _ := f.reg.Get("R2")
	m, ok := room.MemberByConn("c1")
	require.True(t, ok)
	assert.False(t, m.Participant.AudioEnabled)
	assert.True(t, m.Participant.VideoEnabled)
	assert.True(t, m.Participant.ScreenShareEnabled)
}
