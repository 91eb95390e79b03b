// Package metrics defines the Prometheus metrics of the service. Metrics are
// registered with the default registry on import and exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kamiops"

// ── HTTP metrics ──────────────────────────────────────────────────────────────

// HTTPRequestsTotal counts handled requests.
// Labels:
//   - method: HTTP method
//   - route: mux path template (e.g. "/api/documents/{id}")
//   - status: response status code
var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests, by method, route and status.",
	},
	[]string{"method", "route", "status"},
)

// HTTPRequestDuration measures request latency per route.
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

// ── Document metrics ──────────────────────────────────────────────────────────

// DocumentTransitionsTotal counts status changes.
// Labels:
//   - from: previous status
//   - to: new status
var DocumentTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "document_transitions_total",
		Help:      "Total number of document status transitions.",
	},
	[]string{"from", "to"},
)

// SignaturesCapturedTotal counts captured signature artifacts, by kind.
var SignaturesCapturedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signatures_captured_total",
		Help:      "Total number of signature artifacts captured, by kind.",
	},
	[]string{"kind"},
)

// PDFRenderDuration measures template rendering.
// Label:
//   - purpose: "seal", "preview" or "live"
var PDFRenderDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pdf_render_duration_seconds",
		Help:      "Duration of PDF rendering.",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
	},
	[]string{"purpose"},
)

// ── Notification metrics ──────────────────────────────────────────────────────

// NotificationsCreatedTotal counts persisted notifications, by type.
var NotificationsCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_created_total",
		Help:      "Total number of notifications persisted, by type.",
	},
	[]string{"type"},
)

// WebsocketConnections tracks open WebSocket connections.
var WebsocketConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "websocket_connections",
		Help:      "Current number of open WebSocket connections.",
	},
)

// EventsPublishedTotal counts events pushed to clients.
// Label:
//   - transport: "local" or "redis"
var EventsPublishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Total number of real-time events published, by transport.",
	},
	[]string{"transport"},
)
