package web

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gotarpit/internal/registry"
	"gotarpit/internal/stats"
)

const metricsNamespace = "gotarpit"

// newMetrics builds a dedicated Prometheus registry whose collectors
// read straight from the stats counters and the connection registry.
// A dedicated registry keeps /metrics limited to the daemon's own
// series and lets tests spin up servers side by side.
func newMetrics(collector *stats.Collector, reg *registry.Registry) *prometheus.Registry {
	promReg := prometheus.NewRegistry()
	factory := promauto.With(promReg)

	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "connections_accepted_total",
		Help:      "Connections admitted into the tarpit.",
	}, func() float64 { return float64(collector.TotalAccepted()) })

	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "connections_evicted_total",
		Help:      "Connections evicted to make room for newer ones.",
	}, func() float64 { return float64(collector.TotalEvicted()) })

	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "connections_rejected_total",
		Help:      "Connections turned away while the tarpit was disabled or full at zero capacity.",
	}, func() float64 { return float64(collector.TotalRejected()) })

	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "bytes_sent_total",
		Help:      "Banner bytes trickled to clients.",
	}, func() float64 { return float64(collector.TotalBytesSent()) })

	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "connection_seconds_total",
		Help:      "Accumulated lifetime of closed connections in seconds.",
	}, func() float64 { return collector.TotalConnectionTime().Seconds() })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "open_connections",
		Help:      "Connections currently held in the tarpit.",
	}, func() float64 { return float64(collector.CurrentClients()) })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "capacity",
		Help:      "Configured connection capacity.",
	}, func() float64 { return float64(reg.Capacity()) })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "live_connection_seconds",
		Help:      "Summed time the currently open connections have been held.",
	}, func() float64 { return reg.LiveDuration().Seconds() })

	return promReg
}
