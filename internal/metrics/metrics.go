package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Detection metrics
	AlertsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loginsentry_alerts_generated_total",
			Help: "Total number of security alerts persisted",
		},
		[]string{"type", "severity"},
	)

	DetectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loginsentry_detection_errors_total",
			Help: "Total number of detection failures swallowed at the service boundary",
		},
		[]string{"rule"},
	)

	DetectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "loginsentry_detection_duration_seconds",
			Help:    "Duration of a full anomaly detection pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Dispatch metrics
	DispatchDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loginsentry_dispatch_dropped_total",
			Help: "Total number of detection jobs dropped because the queue was full",
		},
	)

	DispatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "loginsentry_dispatch_queue_depth",
			Help: "Current number of detection jobs waiting for a worker",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "loginsentry_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loginsentry_circuit_breaker_rejected_total",
			Help: "Total number of calls rejected while a circuit breaker was open",
		},
		[]string{"name"},
	)

	// Background job metrics
	SweeperDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loginsentry_sweeper_deleted_total",
			Help: "Total number of records deleted by retention jobs",
		},
		[]string{"job"},
	)

	LeaseSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loginsentry_lease_skipped_total",
			Help: "Total number of scheduled runs skipped because another instance held the lease",
		},
		[]string{"job"},
	)
)
