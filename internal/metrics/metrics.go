package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_alert_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "connector_alert_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "connector_alert_http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(10, 10, 6),
		},
		[]string{"method", "endpoint"},
	)

	// Count reader metrics
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "connector_alert_store_query_duration_seconds",
			Help:    "Time taken by the pending count query",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"backend", "status"}, // status: success, failed
	)

	// Monitor metrics
	PendingCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "connector_alert_pending_count",
			Help: "Pending package count observed by the last successful poll",
		},
	)

	AlertThreshold = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "connector_alert_threshold",
			Help: "Configured pending count alert threshold",
		},
	)

	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_alert_polls_total",
			Help: "Total number of monitor polls",
		},
		[]string{"status"}, // status: ok, breach, failed
	)

	// Scheduler metrics
	SchedulerRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "connector_alert_scheduler_run_duration_seconds",
			Help:    "Duration of one scheduled task run",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"task"},
	)

	// Notification metrics
	AlertsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_alert_notifications_total",
			Help: "Total number of alert notifications by channel",
		},
		[]string{"notifier", "status"}, // status: sent, failed
	)

	AlertsRateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "connector_alert_notifications_rate_limited_total",
			Help: "Total number of alerts dropped by the dispatcher rate limit",
		},
	)

	// Kafka producer metrics
	KafkaPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_alert_kafka_publish_total",
			Help: "Total number of alert messages published to Kafka",
		},
		[]string{"status"}, // status: success, failed
	)

	KafkaPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "connector_alert_kafka_publish_retries_total",
			Help: "Total number of Kafka publish retries",
		},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_alert_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
