package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	RateLimitRefusals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_rate_limit_refusals_total",
			Help: "Requests refused by the rate limiter.",
		},
		[]string{"scope"},
	)

	RateLimitStoreErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_rate_limit_store_errors_total",
			Help: "Counter store failures that caused fail-open admission.",
		},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_cache_requests_total",
			Help: "Response cache lookups by namespace and result.",
		},
		[]string{"namespace", "result"},
	)

	ToolDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_tool_dispatch_total",
			Help: "Tool calls dispatched by the orchestrator.",
		},
		[]string{"tool", "status"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_upstream_request_duration_seconds",
			Help:    "Latency of calls to external collaborators.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"service", "outcome"},
	)

	ChatTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_chat_turns_total",
			Help: "Completed chat turns by final state.",
		},
		[]string{"state", "cached"},
	)
)
