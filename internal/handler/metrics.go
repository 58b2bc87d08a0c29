package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finishflow_http_submissions_total",
			Help: "Total number of execute requests by outcome code.",
		},
		[]string{"code"},
	)

	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finishflow_downloads_total",
			Help: "Total number of download attempts by status.",
		},
		[]string{"status"},
	)

	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finishflow_rate_limited_total",
		Help: "Total number of requests rejected by the rate limiter.",
	})
)
