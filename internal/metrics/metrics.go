package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// BillingOperationsTotal counts billing state transitions by outcome (ok, rejected, error).
	BillingOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_operations_total",
			Help: "Budget, invoice and payment operations",
		},
		[]string{"operation", "outcome"},
	)

	DocumentsRenderedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "documents_rendered_total",
			Help: "Generated PDF documents by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	RealtimeClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_clients",
			Help: "Connected change-feed websocket clients",
		},
	)
)
