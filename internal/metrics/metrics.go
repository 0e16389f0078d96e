// Package metrics exposes Prometheus collectors for the session orchestrator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "streamlink"

// Metrics groups the orchestrator collectors. A nil *Metrics records nothing.
type Metrics struct {
	MessagesSent      prometheus.Counter
	MessagesQueued    prometheus.Counter
	MessagesReceived  *prometheus.CounterVec
	MessagesMalformed prometheus.Counter
	Sweeps            prometheus.Counter
	Recoveries        *prometheus.CounterVec
	Sessions          *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg when it is non-nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Signaling messages written to the connection.",
		}),
		MessagesQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_queued_total",
			Help:      "Signaling messages held until the connection came up.",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Decoded inbound signaling messages by command.",
		}, []string{"command"}),
		MessagesMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_malformed_total",
			Help:      "Inbound signaling messages dropped by the decoder.",
		}),
		Sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Reconnection sweeps executed.",
		}),
		Recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_recoveries_total",
			Help:      "Sessions torn down and re-issued by a sweep.",
		}, []string{"role"}),
		Sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Sessions currently in the registry by role.",
		}, []string{"role"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.MessagesSent,
			m.MessagesQueued,
			m.MessagesReceived,
			m.MessagesMalformed,
			m.Sweeps,
			m.Recoveries,
			m.Sessions,
		)
	}
	return m
}

func (m *Metrics) Sent() {
	if m != nil {
		m.MessagesSent.Inc()
	}
}

func (m *Metrics) Queued() {
	if m != nil {
		m.MessagesQueued.Inc()
	}
}

func (m *Metrics) Received(command string) {
	if m != nil {
		m.MessagesReceived.WithLabelValues(command).Inc()
	}
}

func (m *Metrics) Malformed() {
	if m != nil {
		m.MessagesMalformed.Inc()
	}
}

func (m *Metrics) Swept() {
	if m != nil {
		m.Sweeps.Inc()
	}
}

func (m *Metrics) Recovered(role string) {
	if m != nil {
		m.Recoveries.WithLabelValues(role).Inc()
	}
}

// SetSessions publishes the per-role session count.
func (m *Metrics) SetSessions(role string, n int) {
	if m != nil {
		m.Sessions.WithLabelValues(role).Set(float64(n))
	}
}
