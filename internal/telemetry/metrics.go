package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики диспетчера.
var (
	ActionsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "syncback_actions_dispatched_total",
		Help: "Syncback actions handed to the worker pool.",
	}, []string{"action"})

	ActionsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "syncback_actions_completed_total",
		Help: "Finished syncback workers by outcome.",
	}, []string{"action", "outcome"})

	ActionsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "syncback_actions_in_flight",
		Help: "Action log entries currently claimed by a worker.",
	})

	UnknownActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "syncback_unknown_actions_total",
		Help: "Action log entries with an action kind missing from the registry.",
	}, []string{"action"})

	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "syncback_poll_duration_seconds",
		Help:    "Duration of one action log poll.",
		Buckets: prometheus.DefBuckets,
	})

	DispatcherRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "syncback_dispatcher_restarts_total",
		Help: "Dispatcher loop restarts after an uncaught error.",
	})

	LockHeld = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "syncback_lock_held",
		Help: "1 while this instance holds the global syncback lock.",
	})
)

// Метрики HTTP API.
var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "syncback_http_requests_total",
		Help: "Total HTTP requests.",
	}, []string{"method", "path", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "syncback_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// Outcome-лейблы для ActionsCompleted.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)
