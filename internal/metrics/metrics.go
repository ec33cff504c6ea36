// Package metrics holds the Prometheus collectors of a medsync node.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "medsync"

// Metrics groups the counters shared by both node roles.
// Роль узла определяет, какие счетчики реально растут.
type Metrics struct {
	SnapshotsPublished prometheus.Counter
	PublishFailures    prometheus.Counter
	CommandsReceived   *prometheus.CounterVec // label: action
	CommandsRejected   prometheus.Counter
	SnapshotsApplied   prometheus.Counter
	SnapshotsRejected  prometheus.Counter
	CommandsSent       *prometheus.CounterVec // label: action
	CommandsDropped    *prometheus.CounterVec // label: reason
	HTTPRequests       *prometheus.CounterVec // labels: method, status
	SnapshotStreams    prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      "Snapshots handed to the snapshot channel.",
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_publish_failures_total",
			Help:      "Snapshot publications that failed and were dropped.",
		}),
		CommandsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_received_total",
			Help:      "Commands received on the command channel.",
		}, []string{"action"}),
		CommandsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_rejected_total",
			Help:      "Commands with an unknown path or empty record id.",
		}),
		SnapshotsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_applied_total",
			Help:      "Snapshots decoded and applied to the local repository.",
		}),
		SnapshotsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_rejected_total",
			Help:      "Snapshots discarded because they failed to decode or apply.",
		}),
		CommandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_sent_total",
			Help:      "Commands handed to the transport.",
		}, []string{"action"}),
		CommandsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_dropped_total",
			Help:      "Commands dropped before reaching the transport.",
		}, []string{"reason"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by the authoritative node.",
		}, []string{"method", "status"}),
		SnapshotStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_streams",
			Help:      "Currently connected snapshot stream subscribers.",
		}),
	}

	reg.MustRegister(
		m.SnapshotsPublished,
		m.PublishFailures,
		m.CommandsReceived,
		m.CommandsRejected,
		m.SnapshotsApplied,
		m.SnapshotsRejected,
		m.CommandsSent,
		m.CommandsDropped,
		m.HTTPRequests,
		m.SnapshotStreams,
	)

	return m
}

// NewUnregistered creates collectors on a private registry.
// Используется в тестах и там, где экспорт метрик не нужен.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
