// Package metrics exposes Prometheus instrumentation for the sync engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SyncAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kudi_sync_attempts_total",
		Help: "Remote sync attempts, by mutation kind.",
	}, []string{"kind"})

	SyncSuccesses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kudi_sync_successes_total",
		Help: "Mutations confirmed by the remote store, by kind.",
	}, []string{"kind"})

	SyncFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kudi_sync_failures_total",
		Help: "Failed sync attempts, by mutation kind.",
	}, []string{"kind"})

	FlushPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kudi_flush_passes_total",
		Help: "Completed flush passes across all users.",
	})

	FlushCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kudi_flush_coalesced_total",
		Help: "Flush triggers coalesced into an already-running pass.",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kudi_queue_depth",
		Help: "Pending mutations across all local queues.",
	})
)

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
