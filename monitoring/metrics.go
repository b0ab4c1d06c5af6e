package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_connections",
			Help: "Number of active connections",
		},
	)

	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_requests_total",
			Help: "Total number of requests issued to the spreadsheet backend",
		},
		[]string{"action", "outcome"},
	)

	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_request_duration_seconds",
			Help:    "Duration of spreadsheet backend requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	ChatMessagesMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_merged_total",
			Help: "Total number of chat messages merged into the local view",
		},
	)

	ChatSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_subscribers",
			Help: "Number of connected chat websocket subscribers",
		},
	)
)
