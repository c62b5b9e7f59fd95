package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchlist_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watchlist_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// result is one of success, failure, not_found, rejected
	CatalogRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchlist_catalog_requests_total",
			Help: "Total number of catalog API requests by operation and result",
		},
		[]string{"operation", "result"},
	)

	CatalogBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "watchlist_catalog_breaker_state",
			Help: "Catalog circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchlist_add_rate_limit_decisions_total",
			Help: "Add cooldown decisions by outcome",
		},
		[]string{"decision"},
	)

	StoreChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchlist_store_changes_total",
			Help: "Successful watchlist store mutations by operation",
		},
		[]string{"op"},
	)

	RealtimeClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watchlist_realtime_clients",
			Help: "Currently connected realtime websocket clients",
		},
	)

	TaskExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchlist_task_executions_total",
			Help: "Background task executions by type and result",
		},
		[]string{"type", "result"},
	)
)
