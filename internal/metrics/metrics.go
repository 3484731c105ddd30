// Clickmirror - Advertising Tracker Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickmirror

// Package metrics provides Prometheus instrumentation for the sync engine:
// upstream API calls, token refreshes, record throughput per entity,
// destination upserts, and cycle outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream API metrics
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voluum_requests_total",
			Help: "Total number of Voluum API requests",
		},
		[]string{"endpoint", "status"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voluum_request_duration_seconds",
			Help:    "Voluum API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	AuthTokenRefreshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voluum_token_refreshes_total",
			Help: "Total number of credential-exchange calls (cache misses)",
		},
	)

	// Circuit breaker state: 0 = closed, 1 = half-open, 2 = open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Sync engine metrics
	SyncCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_cycles_total",
			Help: "Total number of sync cycles by outcome",
		},
		[]string{"status"}, // "success" or "error"
	)

	SyncCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_cycle_duration_seconds",
			Help:    "Duration of full sync cycles in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	SyncRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_total",
			Help: "Total number of records upserted per entity",
		},
		[]string{"entity"}, // "visits", "clicks", "conversions"
	)

	SyncPageSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_page_size",
			Help:    "Number of rows returned per fetched page",
			Buckets: []float64{0, 10, 50, 100, 250, 500, 1000},
		},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_errors_total",
			Help: "Total number of sync errors by category",
		},
		[]string{"category"}, // "auth", "upstream", "persistence"
	)

	CampaignsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_campaigns_skipped_total",
			Help: "Campaigns skipped due to per-campaign fetch errors",
		},
	)

	// Destination store metrics
	DBUpsertDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_upsert_duration_seconds",
			Help:    "Duration of batch upserts in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table"},
	)

	DBRowsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_rows_deleted_total",
			Help: "Rows removed by retention cleanup",
		},
		[]string{"table"},
	)
)

// RecordCycle records the outcome of one sync cycle.
func RecordCycle(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	SyncCyclesTotal.WithLabelValues(status).Inc()
	SyncCycleDuration.Observe(duration.Seconds())
}
