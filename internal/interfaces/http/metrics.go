package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request and engine metrics, exposed on /metrics.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "macrorisk_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "macrorisk_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	recomputesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "macrorisk_score_recomputes_total",
		Help: "Macro score table requests by scaling mode.",
	}, []string{"mode"})

	backtestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "macrorisk_backtests_total",
		Help: "Backtest panel renders.",
	})
)
