package websocket

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	connections     prometheus.Gauge
	upgradeFailures prometheus.Counter
	framesRead      prometheus.Counter
	bufferOverflows prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_ws_connections",
				Help: "Current number of open websocket connections.",
			},
		),
		upgradeFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_ws_upgrade_failures_total",
				Help: "Total websocket upgrade requests that failed.",
			},
		),
		framesRead: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_ws_frames_read_total",
				Help: "Total data frames read from clients.",
			},
		),
		bufferOverflows: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_ws_send_buffer_overflows_total",
				Help: "Total outbound frames dropped because a send buffer was full.",
			},
		),
	}
	reg.MustRegister(m.connections, m.upgradeFailures, m.framesRead, m.bufferOverflows)
	return m
}

func (m *Metrics) incConnections() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) decConnections() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) incUpgradeFailures() {
	if m != nil {
		m.upgradeFailures.Inc()
	}
}

func (m *Metrics) incFramesRead() {
	if m != nil {
		m.framesRead.Inc()
	}
}

func (m *Metrics) incBufferOverflows() {
	if m != nil {
		m.bufferOverflows.Inc()
	}
}
