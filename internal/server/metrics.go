package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmissionsTotal counts analysis submissions by outcome.
	// Labels: outcome (accepted, duplicate, rejected)
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexd",
			Subsystem: "api",
			Name:      "submissions_total",
			Help:      "Total number of analysis submissions by outcome",
		},
		[]string{"outcome"},
	)

	// StatusLookupsTotal counts status lookups by result.
	// Labels: result (found, not_found)
	StatusLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexd",
			Subsystem: "api",
			Name:      "status_lookups_total",
			Help:      "Total number of job status lookups",
		},
		[]string{"result"},
	)

	// RequestDuration tracks handler latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lexd",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Duration of API handlers in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"handler"},
	)
)
