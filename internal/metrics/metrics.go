// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pointkeeper"

var (
	// TransactionsRecorded counts applied rules. Labels: type (ACHIEVEMENT, VIOLATION)
	TransactionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "transactions_recorded_total",
		Help:      "Total transactions recorded",
	}, []string{"type"})

	// TransactionsReverted counts reversals. Labels: cause (manual, appeal)
	TransactionsReverted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "transactions_reverted_total",
		Help:      "Total transactions reverted",
	}, []string{"cause"})

	AppealsFiled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "appeals_filed_total",
		Help:      "Total appeals filed",
	})

	// AppealsResolved counts decisions. Labels: decision (APPROVED, REJECTED)
	AppealsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "appeals_resolved_total",
		Help:      "Total appeals resolved",
	}, []string{"decision"})

	ArchivesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "archives_created_total",
		Help:      "Total archives created",
	})

	// PublicLookups counts unauthenticated member lookups. Labels: result (hit, miss)
	PublicLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "public",
		Name:      "lookups_total",
		Help:      "Total public member lookups",
	}, []string{"result"})

	// PersistenceSaves counts backend writes. Labels: backend, status (ok, error)
	PersistenceSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "persistence",
		Name:      "saves_total",
		Help:      "Total dataset saves by backend",
	}, []string{"backend", "status"})

	// PersistenceSaveDuration measures backend write latency. Labels: backend
	PersistenceSaveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "persistence",
		Name:      "save_duration_seconds",
		Help:      "Dataset save latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"backend"})

	// LoadFallbacks counts loads that fell back to an empty dataset. Labels: backend
	LoadFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "persistence",
		Name:      "load_fallbacks_total",
		Help:      "Total loads that returned the default dataset after an error",
	}, []string{"backend"})

	// Exports counts archive exports. Labels: status (completed, failed)
	Exports = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "export",
		Name:      "archives_total",
		Help:      "Total archive exports by outcome",
	}, []string{"status"})

	// RateLimited counts rejected requests. Labels: route
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Total requests rejected by the rate limiter",
	}, []string{"route"})

	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "websocket",
		Name:      "clients",
		Help:      "Connected websocket clients",
	})
)
