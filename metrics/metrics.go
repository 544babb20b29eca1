// Package metrics provides Prometheus instrumentation for the sesstore
// engine. It exposes counters for session lifecycle transitions, a gauge for
// resident records, and histograms for sweep cost.
//
// The collectors are package globals registered on the default registry, so
// they assume one Store per process. A process running several stores gets
// their counts summed into one series; in particular ResidentSessions is set
// by each Store at construction and moved by all of them afterwards.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SessionsCreated counts successfully created sessions.
	SessionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sesstore_sessions_created_total",
		Help: "Total number of sessions created",
	})

	// SessionsDeleted counts sessions removed by explicit delete.
	SessionsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sesstore_sessions_deleted_total",
		Help: "Total number of sessions removed by explicit delete",
	})

	// SessionsPurged counts dead sessions physically removed by the sweeper.
	SessionsPurged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sesstore_sessions_purged_total",
		Help: "Total number of expired sessions purged by the sweeper",
	})

	// ExpiredReads counts reads that hit a dead-but-present record. A high
	// rate relative to purges means the sweep interval is too slow for the
	// traffic pattern.
	ExpiredReads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sesstore_expired_reads_total",
		Help: "Reads that found a record already past its expiry",
	})

	// IDCollisions counts identifier generation retries.
	IDCollisions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sesstore_id_collisions_total",
		Help: "Identifier collisions encountered during create",
	})

	// StorageFailures counts operations aborted by the durable backend,
	// labeled by operation: "create", "get", "update", "touch", "delete",
	// "sweep".
	StorageFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sesstore_storage_failures_total",
		Help: "Operations aborted by a durable backend failure",
	}, []string{"op"})

	// ResidentSessions tracks records physically present in the table,
	// dead or alive.
	ResidentSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sesstore_resident_sessions",
		Help: "Records currently resident in the record table",
	})

	// SweepDuration records how long one sweep pass takes.
	SweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sesstore_sweep_duration_seconds",
		Help:    "Duration of one sweeper pass",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	// SweepBatch records how many entries each pass purged.
	SweepBatch = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sesstore_sweep_batch_purged",
		Help:    "Expired records purged per sweeper pass",
		Buckets: []float64{0, 1, 4, 16, 64, 256, 1024},
	})
)

func init() {
	prometheus.MustRegister(
		SessionsCreated,
		SessionsDeleted,
		SessionsPurged,
		ExpiredReads,
		IDCollisions,
		StorageFailures,
		ResidentSessions,
		SweepDuration,
		SweepBatch,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
