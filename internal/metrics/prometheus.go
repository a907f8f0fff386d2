package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the scoring worker

var (
	// Feed API metrics
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golfpools_api_calls_total",
			Help: "Total number of DataGolf API calls",
		},
		[]string{"endpoint", "status"},
	)

	APICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "golfpools_api_call_duration_seconds",
			Help:    "Duration of API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Poll cycle metrics
	PollCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golfpools_poll_cycles_total",
			Help: "Total number of score poll cycles",
		},
		[]string{"tour", "status"},
	)

	PollCycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "golfpools_poll_cycle_duration_seconds",
			Help:    "Duration of score poll cycles in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"tour"},
	)

	ScoresUpdated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golfpools_scores_updated_total",
			Help: "Total number of player score rows written",
		},
		[]string{"tour"},
	)

	// Lock metrics
	LockAcquisitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golfpools_lock_acquisitions_total",
			Help: "Total number of distributed lock acquisition attempts",
		},
		[]string{"task", "outcome"},
	)

	// Queue metrics
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "golfpools_queue_depth",
			Help: "Number of tasks waiting in the queue",
		},
	)

	TasksExecutedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golfpools_tasks_executed_total",
			Help: "Total number of queue tasks executed",
		},
		[]string{"task", "status"},
	)

	TasksExpiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golfpools_tasks_expired_total",
			Help: "Total number of queue tasks dropped past their expiry",
		},
		[]string{"task"},
	)

	// Lifecycle metrics
	LeaguesFinalized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "golfpools_leagues_finalized_total",
			Help: "Total number of leagues finalized",
		},
	)

	SubstitutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golfpools_substitutions_total",
			Help: "Total number of withdrawn-player substitutions",
		},
		[]string{"outcome"},
	)

	PollersScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golfpools_pollers_scheduled_total",
			Help: "Total number of poller chains started",
		},
		[]string{"tour", "source"},
	)

	// Database metrics
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "golfpools_db_connections_active",
			Help: "Number of active database connections",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "golfpools_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golfpools_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "golfpools_system_uptime_seconds",
			Help: "System uptime in seconds",
		},
	)

	LastSuccessfulPoll = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "golfpools_last_successful_poll_timestamp",
			Help: "Timestamp of the last successful poll cycle",
		},
	)
)

// RecordAPICall records a feed API call metric
func RecordAPICall(endpoint, status string, duration float64) {
	APICallsTotal.WithLabelValues(endpoint, status).Inc()
	APICallDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordPollCycle records a completed poll cycle
func RecordPollCycle(tour, status string, duration float64) {
	PollCyclesTotal.WithLabelValues(tour, status).Inc()
	PollCycleDuration.WithLabelValues(tour).Observe(duration)
}

// RecordLockAttempt records a lock acquisition outcome ("acquired" or "held")
func RecordLockAttempt(task, outcome string) {
	LockAcquisitionsTotal.WithLabelValues(task, outcome).Inc()
}

// RecordError records an error metric
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
