// Package metrics 集中定义 Prometheus 指标（promauto 注册到默认 registry）。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineRuns 按 source 与 outcome（ok/empty/<error_code>）计数。
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wat2watch_pipeline_runs_total",
			Help: "Recommendation pipeline invocations by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wat2watch_pipeline_duration_seconds",
			Help:    "Recommendation pipeline latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"source"},
	)

	// UpstreamRequests 按 provider、stage（search/detail/recommend）、status（HTTP 码或 error）计数。
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wat2watch_upstream_requests_total",
			Help: "Outbound movie-data API requests",
		},
		[]string{"provider", "stage", "status"},
	)

	DetailCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wat2watch_detail_cache_hits_total",
		Help: "Detail lookups served from the local cache",
	})

	DetailCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wat2watch_detail_cache_misses_total",
		Help: "Detail lookups that went to the network",
	})

	WatchlistEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wat2watch_watchlist_entries",
		Help: "Entries in the watchlist after the last read or write",
	})

	// BreakerState: 0=closed 1=half-open 2=open。
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wat2watch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wat2watch_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wat2watch_api_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wat2watch_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	// StaleResponses 统计被请求 token 淘汰的过期响应。
	StaleResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wat2watch_view_stale_responses_total",
		Help: "Pipeline responses discarded because a newer submission was issued",
	})
)
