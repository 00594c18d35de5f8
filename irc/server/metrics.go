package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors updated by the event loop.
type Metrics struct {
	Sessions prometheus.Gauge
	Channels prometheus.Gauge
	Accepted prometheus.Counter
	Rejected prometheus.Counter
	Commands *prometheus.CounterVec
	Errors   *prometheus.CounterVec
	Cycle    prometheus.Histogram
}

// NewMetrics registers the server collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ircd",
			Name:      "sessions",
			Help:      "Number of connected sessions",
		}),
		Channels: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ircd",
			Name:      "channels",
			Help:      "Number of channels",
		}),
		Accepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ircd",
			Name:      "connections_accepted_total",
			Help:      "Connections admitted as sessions",
		}),
		Rejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ircd",
			Name:      "connections_rejected_total",
			Help:      "Connections refused because the server was full",
		}),
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ircd",
			Name:      "commands_total",
			Help:      "Dispatched commands by verb",
		}, []string{"verb"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ircd",
			Name:      "error_replies_total",
			Help:      "Error numerics sent by code",
		}, []string{"code"}),
		Cycle: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ircd",
			Name:      "loop_cycle_seconds",
			Help:      "Time spent processing one event loop iteration",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
	}
}
