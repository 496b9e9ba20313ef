// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xyzen/backend/internal/apperr"
)

const namespace = "xyzen"

// Metrics groups the collectors used across services. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	likeToggles         *prometheus.CounterVec
	playlistMutations   *prometheus.CounterVec
	profileLookups      *prometheus.CounterVec
	playbackTransitions *prometheus.CounterVec
	activePlayers       prometheus.Gauge
	viewsRecorded       *prometheus.CounterVec
	httpRequests        *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		likeToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "like_toggles_total",
			Help:      "Like toggles by outcome.",
		}, []string{"result"}),
		playlistMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playlist_mutations_total",
			Help:      "Playlist mutations by operation and outcome.",
		}, []string{"op", "result"}),
		profileLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_lookups_total",
			Help:      "Creator profile resolutions by outcome.",
		}, []string{"outcome"}),
		playbackTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_transitions_total",
			Help:      "Playback resource transitions by target state.",
		}, []string{"state"}),
		activePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "playback_active_players",
			Help:      "Playback resources currently in the playing state.",
		}),
		viewsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "views_recorded_total",
			Help:      "View counter increments by outcome.",
		}, []string{"result"}),
		httpRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.likeToggles,
			m.playlistMutations,
			m.profileLookups,
			m.playbackTransitions,
			m.activePlayers,
			m.viewsRecorded,
			m.httpRequests,
		)
	}
	return m
}

// Handler exposes the gathered metrics in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// LikeToggled records the outcome of a like toggle.
func (m *Metrics) LikeToggled(liked bool, err error) {
	if m == nil {
		return
	}
	switch {
	case err != nil:
		m.likeToggles.WithLabelValues(resultLabel(err)).Inc()
	case liked:
		m.likeToggles.WithLabelValues("liked").Inc()
	default:
		m.likeToggles.WithLabelValues("unliked").Inc()
	}
}

// PlaylistMutation records a playlist write attempt.
func (m *Metrics) PlaylistMutation(op string, err error) {
	if m == nil {
		return
	}
	m.playlistMutations.WithLabelValues(op, resultLabel(err)).Inc()
}

// ProfileLookup records how a profile resolution was served: "hit", "miss",
// "shared" or "error".
func (m *Metrics) ProfileLookup(outcome string) {
	if m == nil {
		return
	}
	m.profileLookups.WithLabelValues(outcome).Inc()
}

// PlaybackTransition records a playback state change.
func (m *Metrics) PlaybackTransition(from, to string) {
	if m == nil {
		return
	}
	m.playbackTransitions.WithLabelValues(to).Inc()
	if to == "playing" {
		m.activePlayers.Inc()
	}
	if from == "playing" && to != "playing" {
		m.activePlayers.Dec()
	}
}

// ViewRecorded records a view counter increment.
func (m *Metrics) ViewRecorded(err error) {
	if m == nil {
		return
	}
	m.viewsRecorded.WithLabelValues(resultLabel(err)).Inc()
}

// ObserveRequest records an HTTP request.
func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.KindOf(err).String()
}
