package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Result labels.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultError    = "error"
	ResultDeclined = "declined"
)

// Refresh scopes.
const (
	ScopeCollection = "collection"
	ScopeEntity     = "entity"
)

// Metrics holds the client's collectors.
type Metrics struct {
	Refreshes     *prometheus.CounterVec
	PushEvents    *prometheus.CounterVec
	PushConnected prometheus.Gauge
	Reconnects    prometheus.Counter
	Commits       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg skips registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipemirror_refresh_total",
				Help: "Refreshes of the local mirror by kind, scope and result",
			},
			[]string{"kind", "scope", "result"},
		),
		PushEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipemirror_push_events_total",
				Help: "Push notifications received by event type",
			},
			[]string{"event"},
		),
		PushConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pipemirror_push_connected",
				Help: "1 while the push notification stream is connected",
			},
		),
		Reconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pipemirror_push_reconnects_total",
				Help: "Reconnection attempts of the push notification stream",
			},
		),
		Commits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipemirror_commits_total",
				Help: "Edit buffer commits by editor and result",
			},
			[]string{"editor", "result"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Refreshes, m.PushEvents, m.PushConnected, m.Reconnects, m.Commits)
	}
	return m
}

// ObserveRefresh records one refresh outcome.
func (m *Metrics) ObserveRefresh(kind, scope, result string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(kind, scope, result).Inc()
}

// ObservePushEvent records one received push event.
func (m *Metrics) ObservePushEvent(event string) {
	if m == nil {
		return
	}
	m.PushEvents.WithLabelValues(event).Inc()
}

// SetConnected records the push connection state.
func (m *Metrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.PushConnected.Set(1)
	} else {
		m.PushConnected.Set(0)
	}
}

// ObserveReconnect records one reconnection attempt.
func (m *Metrics) ObserveReconnect() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

// ObserveCommit records one commit outcome.
func (m *Metrics) ObserveCommit(editor, result string) {
	if m == nil {
		return
	}
	m.Commits.WithLabelValues(editor, result).Inc()
}
