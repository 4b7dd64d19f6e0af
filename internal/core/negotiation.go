package core

import (
	"sync"

	"github.com/maxklim/huddle/internal/domain"
)

// Polite reports whether self must yield in an offer collision with peer.
// The comparison is stable and order-independent: given the same two
// connection ids, both sides compute complementary answers, so exactly one
// peer rolls back its own offer when offers cross.
func Polite(self, peer domain.ConnID) bool {
	return self < peer
}

type pairKey struct {
	from, to domain.ConnID
}

// NegotiationState tracks one directed peer pair's offer progress. Transient:
// rebuilt whenever the pair is (re)established, dropped with either side.
type NegotiationState struct {
	MakingOffer bool
	Polite      bool
}

// NegotiationTable holds pending negotiation state per ordered pair of
// connections. The relay consults it when forwarding offers and answers.
type NegotiationTable struct {
	mu    sync.Mutex
	pairs map[pairKey]*NegotiationState
}

func NewNegotiationTable() *NegotiationTable {
	return &NegotiationTable{pairs: make(map[pairKey]*NegotiationState)}
}

// OfferSent records that from has an offer in flight toward to and returns
// the pair state. The Polite flag is from's side of the assignment.
func (t *NegotiationTable) OfferSent(from, to domain.ConnID) *NegotiationState {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := pairKey{from, to}
	st, ok := t.pairs[key]
	if !ok {
		st = &NegotiationState{Polite: Polite(from, to)}
		t.pairs[key] = st
	}
	st.MakingOffer = true
	return st
}

// AnswerSent clears the making-offer flag on the reverse pair: an answer from
// from to to completes to's pending offer.
func (t *NegotiationTable) AnswerSent(from, to domain.ConnID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.pairs[pairKey{to, from}]; ok {
		st.MakingOffer = false
	}
}

// State returns the directed pair state, if any.
func (t *NegotiationTable) State(from, to domain.ConnID) (NegotiationState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.pairs[pairKey{from, to}]
	if !ok {
		return NegotiationState{}, false
	}
	return *st, true
}

// DropConn discards all pairs involving a connection. Called on leave and on
// reconnect supersede, so a re-established peer relationship starts fresh.
func (t *NegotiationTable) DropConn(connID domain.ConnID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.pairs {
		if key.from == connID || key.to == connID {
			delete(t.pairs, key)
		}
	}
}
