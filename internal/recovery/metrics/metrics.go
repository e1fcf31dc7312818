package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrorsReported tracks classified errors entering the broadcast handler
	ErrorsReported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_errors_reported_total",
			Help: "Total number of errors reported",
		},
		[]string{"category", "severity"},
	)

	// ErrorsRecovered tracks successful recovery-action executions
	ErrorsRecovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resilience_errors_recovered_total",
			Help: "Total number of errors recovered via a recovery action",
		},
	)

	// RetryAttempts tracks failed attempts seen by retry executors
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_retry_attempts_total",
			Help: "Total number of failed attempts observed by retry executors",
		},
		[]string{"category"},
	)

	// RetryExhausted tracks operations that gave up after the attempt ceiling
	RetryExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_retry_exhausted_total",
			Help: "Total number of operations that exhausted their retry budget",
		},
		[]string{"category"},
	)

	// BreakerTransitions tracks circuit breaker state changes
	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"breaker", "to"},
	)

	// BreakerRejections tracks calls rejected while a breaker is open
	BreakerRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_breaker_rejections_total",
			Help: "Total number of calls rejected by an open circuit breaker",
		},
		[]string{"breaker"},
	)

	// BatchSlots tracks individual batch slot outcomes
	BatchSlots = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_batch_slots_total",
			Help: "Total number of batch operation slots by outcome",
		},
		[]string{"outcome"},
	)

	// ActiveErrors tracks the current size of the active-error map
	ActiveErrors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "resilience_active_errors",
			Help: "Number of currently active (uncleared) errors",
		},
	)
)
