package relay

import (
	"relay-server/internal/protocol"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the relay's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	clients      prometheus.Gauge
	received     *prometheus.CounterVec
	delivered    prometheus.Counter
	dropped      prometheus.Counter
	decodeErrors prometheus.Counter
	rejected     prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_clients",
			Help: "Current number of registered clients.",
		}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_messages_received_total",
			Help: "Decoded client frames by kind.",
		}, []string{"kind"}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_messages_delivered_total",
			Help: "Frames handed to a connection for writing.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_messages_dropped_total",
			Help: "Frames dropped because the connection was closed or saturated.",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_decode_errors_total",
			Help: "Inbound frames rejected by the codec.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_registrations_rejected_total",
			Help: "Connections refused by the client registry.",
		}),
	}

	reg.MustRegister(m.clients, m.received, m.delivered, m.dropped, m.decodeErrors, m.rejected)
	return m
}

func (m *Metrics) setClients(n int) {
	if m != nil {
		m.clients.Set(float64(n))
	}
}

func (m *Metrics) incReceived(kind protocol.Kind) {
	if m == nil {
		return
	}
	label := "UNRECOGNIZED"
	if kind.Known() {
		label = kind.String()
	}
	m.received.WithLabelValues(label).Inc()
}

func (m *Metrics) incDelivered() {
	if m != nil {
		m.delivered.Inc()
	}
}

func (m *Metrics) incDropped() {
	if m != nil {
		m.dropped.Inc()
	}
}

func (m *Metrics) incDecodeErrors() {
	if m != nil {
		m.decodeErrors.Inc()
	}
}

func (m *Metrics) incRejected() {
	if m != nil {
		m.rejected.Inc()
	}
}
