// Package observability provides Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devshelf_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// CacheResults counts cache-aside lookups by outcome (hit, miss, error).
	CacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devshelf_cache_results_total",
		Help: "Cache-aside lookups by outcome",
	}, []string{"outcome"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devshelf_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devshelf_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})

	// NotificationsCreated counts persisted notifications by type.
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devshelf_notifications_created_total",
		Help: "Notifications written, by type",
	}, []string{"type"})

	// LLMRequests counts completion requests by status.
	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devshelf_llm_requests_total",
		Help: "LLM completion requests by status",
	}, []string{"status"})

	// Uploads counts image uploads by backend and status.
	Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devshelf_uploads_total",
		Help: "Image uploads by storage backend and status",
	}, []string{"backend", "status"})

	// EmailsSent counts outbound email by kind and status.
	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devshelf_emails_sent_total",
		Help: "Outbound emails by kind and status",
	}, []string{"kind", "status"})
)

// Status label values shared by the counters above.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// StatusLabel maps an error to StatusOK or StatusError.
func StatusLabel(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}
