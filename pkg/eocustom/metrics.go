package eocustom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of a strategy. A nil *Metrics
// records nothing.
type Metrics struct {
	HandshakesTotal    *prometheus.CounterVec
	RemoteCallsTotal   *prometheus.CounterVec
	RemoteCallDuration *prometheus.HistogramVec
}

// NewMetrics creates the strategy collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HandshakesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eosso_handshakes_total",
				Help: "Total number of callback handshakes by outcome",
			},
			[]string{"outcome"},
		),
		RemoteCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eosso_remote_calls_total",
				Help: "Total number of outbound EO API calls by call and result",
			},
			[]string{"call", "result"},
		),
		RemoteCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eosso_remote_call_duration_seconds",
				Help:    "Outbound EO API call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"call"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.HandshakesTotal, m.RemoteCallsTotal, m.RemoteCallDuration)
	}

	return m
}

func (m *Metrics) observeCall(call remoteCall, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.RemoteCallsTotal.WithLabelValues(call.label, result).Inc()
	m.RemoteCallDuration.WithLabelValues(call.label).Observe(d.Seconds())
}

func (m *Metrics) observeHandshake(outcome string) {
	if m == nil {
		return
	}
	m.HandshakesTotal.WithLabelValues(outcome).Inc()
}
