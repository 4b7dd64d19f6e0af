// Package metrics exposes prometheus instrumentation for the signaling core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "huddle",
		Name:      "rooms_active",
		Help:      "Number of rooms with at least one participant.",
	})

	ParticipantsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "huddle",
		Name:      "participants_connected",
		Help:      "Number of live participants across all rooms.",
	})

	JoinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "huddle",
		Name:      "joins_total",
		Help:      "Join attempts by outcome.",
	}, []string{"result"})

	SignalsRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "huddle",
		Name:      "signals_relayed_total",
		Help:      "Negotiation messages forwarded, by kind.",
	}, []string{"kind"})

	MediaToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "huddle",
		Name:      "media_toggles_total",
		Help:      "Media state toggles, by attribute.",
	}, []string{"attr"})
)

// Handler serves the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
