package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxklim/huddle/internal/core"
)

func TestPolite_Complementary(t *testing.T) {
	// Exactly one side of any pair is polite, regardless of who asks.
	assert.NotEqual(t, core.Polite("a", "b"), core.Polite("b", "a"))
	assert.Equal(t, core.Polite("a", "b"), core.Polite("a", "b"), "assignment is stable")
}

func TestNegotiationTable_OfferAnswer(t *testing.T) {
	tbl := core.NewNegotiationTable()

	st := tbl.OfferSent("a", "b")
	assert.True(t, st.MakingOffer)
	assert.Equal(t, core.Polite("a", "b"), st.Polite)

	// b answering a clears a's pending offer toward b.
	tbl.AnswerSent("b", "a")
	got, ok := tbl.State("a", "b")
	require.True(t, ok)
	assert.False(t, got.MakingOffer)
}

func TestNegotiationTable_DropConn(t *testing.T) {
	tbl := core.NewNegotiationTable()
	tbl.OfferSent("a", "b")
	tbl.OfferSent("b", "a")
	tbl.OfferSent("b", "c")

	tbl.DropConn("a")

	_, ok := tbl.State("a", "b")
	assert.False(t, ok)
	_, ok = tbl.State("b", "a")
	assert.False(t, ok)
	_, ok = tbl.State("b", "c")
	assert.True(t, ok, "pairs not involving the dropped conn survive")
}
