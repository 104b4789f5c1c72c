package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts trigger-surface requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// AIRequestsTotal counts LLM/embedding provider calls.
	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI requests by provider and operation",
		},
		[]string{"provider", "operation"},
	)
	// AIRequestDuration observes provider latency.
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "operation"},
	)

	// FetchAttemptsTotal counts page fetch attempts by outcome.
	FetchAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_fetch_attempts_total",
			Help: "Total page fetch attempts by outcome",
		},
		[]string{"outcome"},
	)
	// ExtractionRecords counts extracted records by cascade stage.
	ExtractionRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extraction_records_total",
			Help: "Records yielded per extraction stage",
		},
		[]string{"stage"},
	)

	// TasksEnqueuedTotal counts background tasks enqueued by type.
	TasksEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_enqueued_total",
			Help: "Total number of background tasks enqueued",
		},
		[]string{"type"},
	)
	// TasksCompletedTotal counts finished tasks by type and status.
	TasksCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_completed_total",
			Help: "Total number of background tasks finished",
		},
		[]string{"type", "status"},
	)

	// InboxMessagesTotal counts reconciliation message outcomes.
	InboxMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_messages_total",
			Help: "Inbox messages by reconciliation outcome",
		},
		[]string{"outcome"},
	)
)

// InitMetrics registers all collectors with the default registry.
// Safe to call once per process.
func InitMetrics() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		AIRequestsTotal,
		AIRequestDuration,
		FetchAttemptsTotal,
		ExtractionRecords,
		TasksEnqueuedTotal,
		TasksCompletedTotal,
		InboxMessagesTotal,
	)
}
