package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	ClaimsCreated       prometheus.Counter
	AllocationRetries   prometheus.Counter
	Transitions         *prometheus.CounterVec
	NotificationsTotal  *prometheus.CounterVec
	NotificationsQueued prometheus.Gauge
	RequestDuration     *prometheus.HistogramVec
	ErrorsCount         *prometheus.CounterVec
}

// NewMetrics creates prometheus metrics registered on reg. A nil reg uses a
// fresh private registry, which keeps tests independent.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		ClaimsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_created_total",
			Help:      "The total number of registered claims",
		}),
		AllocationRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tcar_allocation_retries_total",
			Help:      "Tcar number allocations retried after a uniqueness conflict",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claim_transitions_total",
			Help:      "Claim status changes by source and target status",
		}, []string{"from", "to"}),
		NotificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Workflow notifications by event and outcome",
		}, []string{"event", "outcome"}),
		NotificationsQueued: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notifications_queued",
			Help:      "Workflow events waiting for dispatch",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time taken to serve API requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		ErrorsCount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "The total number of errors",
		}, []string{"operation"}),
	}
}
