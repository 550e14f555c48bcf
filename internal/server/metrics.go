package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes recorded in requests_total.
const (
	resultOK          = "ok"
	resultDecodeError = "decode_error"
	resultQueryError  = "query_error"
	resultWriteError  = "write_error"
)

// Metrics holds Prometheus metrics for one service instance.
type Metrics struct {
	accepted   prometheus.Counter
	rejected   prometheus.Counter
	acceptErr  prometheus.Counter
	wsSessions prometheus.Counter
	active     prometheus.Gauge
	requests   *prometheus.CounterVec
	latency    prometheus.Histogram
}

// newMetrics registers the engine metrics under the service subsystem.
// A nil registerer disables metrics and returns nil.
func newMetrics(reg prometheus.Registerer, service string) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hostfacts",
			Subsystem: service,
			Name:      "connections_accepted_total",
			Help:      "Connections accepted from the listening socket",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hostfacts",
			Subsystem: service,
			Name:      "connections_rejected_total",
			Help:      "Connections closed because the handler queue was full",
		}),
		acceptErr: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hostfacts",
			Subsystem: service,
			Name:      "accept_errors_total",
			Help:      "Failed accept calls",
		}),
		wsSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hostfacts",
			Subsystem: service,
			Name:      "websocket_sessions_total",
			Help:      "Websocket sessions opened on the admin /ws endpoint",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hostfacts",
			Subsystem: service,
			Name:      "connections_active",
			Help:      "TCP connections and websocket sessions currently being served",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hostfacts",
			Subsystem: service,
			Name:      "requests_total",
			Help:      "Requests read from clients by outcome",
		}, []string{"result"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hostfacts",
			Subsystem: service,
			Name:      "request_duration_seconds",
			Help:      "Time from a decoded request to its written response",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
	}
	reg.MustRegister(m.accepted, m.rejected, m.acceptErr, m.wsSessions, m.active, m.requests, m.latency)
	return m
}

func (m *Metrics) connAccepted() {
	if m != nil {
		m.accepted.Inc()
	}
}

func (m *Metrics) connRejected() {
	if m != nil {
		m.rejected.Inc()
	}
}

func (m *Metrics) acceptFailed() {
	if m != nil {
		m.acceptErr.Inc()
	}
}

func (m *Metrics) wsOpened() {
	if m != nil {
		m.wsSessions.Inc()
	}
}

func (m *Metrics) connOpened() {
	if m != nil {
		m.active.Inc()
	}
}

func (m *Metrics) connClosed() {
	if m != nil {
		m.active.Dec()
	}
}

func (m *Metrics) request(result string, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(result).Inc()
	if result == resultOK {
		m.latency.Observe(seconds)
	}
}
