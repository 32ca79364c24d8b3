package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "crankmeter"

// Prometheus groups the exported counters.
type Prometheus struct {
	// Samples counts monitor samples queued for writing.
	// Labels: host
	Samples *prometheus.CounterVec

	// PollErrors counts failed agent calls.
	// Labels: host, code
	PollErrors *prometheus.CounterVec

	// ExcludedHosts counts hosts dropped before or during polling.
	// Labels: host, stage (dial, handshake, poll)
	ExcludedHosts *prometheus.CounterVec

	// QueueDepth is the number of samples waiting for the writer.
	QueueDepth prometheus.Gauge

	// Written counts samples appended to the log.
	Written prometheus.Counter

	// PluginErrors counts failed plugin reads on an agent.
	// Labels: plugin
	PluginErrors *prometheus.CounterVec
}

// NewPrometheus registers every metric on reg. A nil reg uses the default registerer.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Prometheus{
		Samples: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "samples_total",
			Help:      "Monitor samples queued for writing, by host.",
		}, []string{"host"}),
		PollErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "poll_errors_total",
			Help:      "Failed calls to monitor agents, by host and status code.",
		}, []string{"host", "code"}),
		ExcludedHosts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "excluded_hosts_total",
			Help:      "Hosts dropped from polling, by stage.",
		}, []string{"host", "stage"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "queue_depth",
			Help:      "Samples waiting for the log writer.",
		}),
		Written: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "written_total",
			Help:      "Samples appended to the monitor log.",
		}),
		PluginErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "plugin_errors_total",
			Help:      "Failed plugin reads, by plugin.",
		}, []string{"plugin"}),
	}
}
