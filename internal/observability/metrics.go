package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	httpRequestsTotal    *prometheus.CounterVec
	httpLatencySeconds   *prometheus.HistogramVec
	httpErrorsTotal      *prometheus.CounterVec
	messagesSentTotal    *prometheus.CounterVec
	conversationsCreated prometheus.Counter
	chatSessionsActive   prometheus.Gauge
	eventsPublishedTotal *prometheus.CounterVec
)

// Message kinds reported by MessagesSent.
const (
	KindPlain    = "plain"
	KindProposal = "proposal"
	KindAccepted = "accepted"
	KindDeclined = "declined"
)

// RegisterMetrics initialises the Prometheus collectors exposed on /metrics.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillswap_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skillswap_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillswap_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		messagesSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillswap_messages_sent_total",
			Help: "Messages appended to conversations, by classification.",
		}, []string{"kind"})

		conversationsCreated = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skillswap_conversations_created_total",
			Help: "Conversations created on first contact between two users.",
		})

		chatSessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "skillswap_chat_sessions_active",
			Help: "Chat sessions currently attached to websocket viewers.",
		})

		eventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillswap_events_published_total",
			Help: "Message events published to the fan-out transports.",
		}, []string{"transport", "result"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			messagesSentTotal,
			conversationsCreated,
			chatSessionsActive,
			eventsPublishedTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// MessagesSent exposes the per-kind message counter.
func MessagesSent() *prometheus.CounterVec {
	RegisterMetrics()
	return messagesSentTotal
}

// ConversationsCreated exposes the conversation creation counter.
func ConversationsCreated() prometheus.Counter {
	RegisterMetrics()
	return conversationsCreated
}

// ChatSessionsActive exposes the gauge of attached chat sessions.
func ChatSessionsActive() prometheus.Gauge {
	RegisterMetrics()
	return chatSessionsActive
}

// EventsPublished exposes the fan-out publish counter.
func EventsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return eventsPublishedTotal
}
