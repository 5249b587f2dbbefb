// Package metrics exposes the daemon's Prometheus collectors. Collectors are
// package-level and registered with the default registry; the HTTP server
// serves them at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HeartbeatsTotal counts accepted heartbeats by path ("live" or "buffered").
	HeartbeatsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storewatch_heartbeats_total",
		Help: "Accepted heartbeats by ingestion path.",
	}, []string{"path"})

	// HeartbeatsRejected counts heartbeats rejected by validation.
	HeartbeatsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storewatch_heartbeats_rejected_total",
		Help: "Heartbeats rejected as malformed.",
	})

	// PersistFailures counts heartbeat persistence failures. The ingestion
	// path still acks, so this is the only place the loss is visible.
	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storewatch_persist_failures_total",
		Help: "Heartbeat persistence transaction failures.",
	})

	// AlertsTotal counts dispatched alerts by kind.
	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storewatch_alerts_total",
		Help: "Alerts dispatched by kind.",
	}, []string{"kind"})

	// AlertsSuppressed counts alerts suppressed by cooldown by kind.
	AlertsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storewatch_alerts_suppressed_total",
		Help: "Alerts suppressed by cooldown by kind.",
	}, []string{"kind"})

	// NotifyFailures counts failed or dropped notification deliveries.
	NotifyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storewatch_notify_failures_total",
		Help: "Notification deliveries that failed or were dropped.",
	})

	// StoresByStatus gauges the registry population by status.
	StoresByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "storewatch_stores",
		Help: "Known stores by liveness status.",
	}, []string{"status"})

	// SweepDuration observes health sweep latency.
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storewatch_sweep_duration_seconds",
		Help:    "Duration of one health sweep.",
		Buckets: prometheus.DefBuckets,
	})
)
