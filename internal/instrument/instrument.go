// Package instrument exposes Prometheus metrics for the engine's hot
// paths. Metrics are registered with the default registry via promauto and
// served on /metrics.
package instrument

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsIngestedTotal counts persisted metric events by type.
	EventsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "popup_events_ingested_total",
			Help: "Total number of metric events persisted",
		},
		[]string{"event_type"},
	)

	// EventsRejectedTotal counts ingestion requests rejected before any
	// write, by reason (not_found, bad_request, bot).
	EventsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "popup_events_rejected_total",
			Help: "Total number of ingestion requests rejected",
		},
		[]string{"reason"},
	)

	// IngestDuration tracks end-to-end ingestion latency.
	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "popup_ingest_duration_seconds",
			Help:    "Duration of event ingestion requests in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// ActivityCacheHitsTotal counts activity lookups served from redis.
	ActivityCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "popup_activity_cache_hits_total",
			Help: "Total number of activity cache hits",
		},
	)

	// ActivityCacheMissesTotal counts activity lookups that fell through
	// to the primary store.
	ActivityCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "popup_activity_cache_misses_total",
			Help: "Total number of activity cache misses",
		},
	)

	// ExportRowsTotal counts CSV rows written by exports.
	ExportRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "popup_export_rows_total",
			Help: "Total number of CSV rows exported",
		},
	)

	// CorrelationFailuresTotal counts per-visitor submission lookups that
	// failed during bulk export (recovered, not fatal).
	CorrelationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "popup_correlation_failures_total",
			Help: "Total number of recovered submission lookup failures during export",
		},
	)
)
