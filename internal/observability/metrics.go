package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Push outcomes recorded by the delivery dispatcher.
const (
	PushDelivered = "delivered"
	PushOffline   = "offline"
	PushFailed    = "failed"
	PushRemote    = "remote"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpDurationSeconds   *prometheus.HistogramVec
	adminRequestsTotal    *prometheus.CounterVec
	adminLatencySeconds   *prometheus.HistogramVec
	adminErrorsTotal      *prometheus.CounterVec
	messagesAppendedTotal prometheus.Counter
	connectionsActive     prometheus.Gauge
	pushTotal             *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency distribution for HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"})

		adminRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_requests_total",
			Help: "Total number of admin API requests served.",
		}, []string{"method", "route", "status"})

		adminLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "admin_latency_seconds",
			Help:    "Latency distribution for admin API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		adminErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_errors_total",
			Help: "Total number of error responses returned by admin endpoints.",
		}, []string{"method", "route", "status"})

		messagesAppendedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "messages_appended_total",
			Help: "Total number of messages persisted.",
		})

		connectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_connections_active",
			Help: "Number of users with a registered realtime connection on this node.",
		})

		pushTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_push_total",
			Help: "Realtime push attempts by outcome.",
		}, []string{"result"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpDurationSeconds,
			adminRequestsTotal,
			adminLatencySeconds,
			adminErrorsTotal,
			messagesAppendedTotal,
			connectionsActive,
			pushTotal,
		)
	})
}

// HTTPRequests counts every HTTP request by route template and status.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPDuration exposes the request latency histogram.
func HTTPDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpDurationSeconds
}

// AdminRequests exposes the counter for admin requests.
func AdminRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return adminRequestsTotal
}

// AdminLatency exposes the latency histogram for admin requests.
func AdminLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return adminLatencySeconds
}

// AdminErrors exposes the counter for admin error responses.
func AdminErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return adminErrorsTotal
}

// MessagesAppended counts persisted messages.
func MessagesAppended() prometheus.Counter {
	RegisterMetrics()
	return messagesAppendedTotal
}

// RealtimeConnectionsActive tracks registered realtime connections.
func RealtimeConnectionsActive() prometheus.Gauge {
	RegisterMetrics()
	return connectionsActive
}

// RealtimePush counts push attempts labelled by outcome.
func RealtimePush() *prometheus.CounterVec {
	RegisterMetrics()
	return pushTotal
}
