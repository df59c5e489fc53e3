package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AssignmentsCreated  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "sos_dispatch", Name: "assignments_created_total", Help: "Total assignments created"})
	AssignmentsResolved = promauto.NewCounter(prometheus.CounterOpts{Namespace: "sos_dispatch", Name: "assignments_resolved_total", Help: "Total assignments resolved"})
	MatchFailures       = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "sos_dispatch", Name: "match_failures_total", Help: "Matches that found no candidate"},
		[]string{"reason"},
	)
	LocationsReported = promauto.NewCounter(prometheus.CounterOpts{Namespace: "sos_dispatch", Name: "locations_reported_total", Help: "Location reports accepted"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "sos_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sos_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
