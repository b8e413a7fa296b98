// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Webhook metrics
	WebhookBatchesReceived prometheus.Counter
	WebhookAuthFailures    prometheus.Counter
	EventsProcessed        prometheus.Counter
	EventsSkipped          *prometheus.CounterVec

	// Fan-out metrics
	NotificationsCreated   prometheus.Counter
	NotificationsDuplicate prometheus.Counter
	FanoutErrors           *prometheus.CounterVec
	FanoutDuration         prometheus.Histogram

	// Push metrics
	PushesSent      *prometheus.CounterVec
	PushesFailed    *prometheus.CounterVec
	EndpointsPruned prometheus.Counter

	// Valuation metrics
	PriceLookups  *prometheus.CounterVec
	OracleLatency prometheus.Histogram

	// Resync metrics
	ResyncRunsTotal  *prometheus.CounterVec
	WalletsMonitored prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "wallet_notifier"
	}

	return &Metrics{
		WebhookBatchesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "batches_received_total",
			Help:      "Total number of webhook deliveries received",
		}),
		WebhookAuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "auth_failures_total",
			Help:      "Total number of webhook requests rejected for bad auth",
		}),
		EventsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_processed_total",
			Help:      "Total number of activity events processed",
		}),
		EventsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_skipped_total",
			Help:      "Total number of activity events skipped by reason",
		}, []string{"reason"}),

		NotificationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "notifications_created_total",
			Help:      "Total number of notification rows created",
		}),
		NotificationsDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "notifications_duplicate_total",
			Help:      "Total number of notification inserts absorbed as duplicates",
		}),
		FanoutErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "errors_total",
			Help:      "Total number of fan-out errors by stage",
		}, []string{"stage"}),
		FanoutDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "batch_duration_seconds",
			Help:      "Webhook batch fan-out duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		PushesSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "sent_total",
			Help:      "Total number of push deliveries attempted by channel",
		}, []string{"channel"}),
		PushesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "failed_total",
			Help:      "Total number of failed push deliveries by channel",
		}, []string{"channel"}),
		EndpointsPruned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "endpoints_pruned_total",
			Help:      "Total number of permanently dead endpoints deleted",
		}),

		PriceLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "valuation",
			Name:      "price_lookups_total",
			Help:      "Total number of price lookups by resolution layer",
		}, []string{"layer"}),
		OracleLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "valuation",
			Name:      "oracle_latency_seconds",
			Help:      "External price oracle call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		ResyncRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "resync_runs_total",
			Help:      "Total number of full resync runs by status",
		}, []string{"status"}),
		WalletsMonitored: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "wallets_monitored",
			Help:      "Number of wallets currently monitored upstream",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEventProcessed increments the events processed counter.
func RecordEventProcessed() {
	DefaultMetrics.EventsProcessed.Inc()
}

// RecordEventSkipped records a skipped event by reason.
func RecordEventSkipped(reason string) {
	DefaultMetrics.EventsSkipped.WithLabelValues(reason).Inc()
}

// RecordNotificationCreated increments the notifications created counter.
func RecordNotificationCreated() {
	DefaultMetrics.NotificationsCreated.Inc()
}

// RecordNotificationDuplicate increments the duplicate insert counter.
func RecordNotificationDuplicate() {
	DefaultMetrics.NotificationsDuplicate.Inc()
}

// RecordFanoutError records a fan-out error by stage.
func RecordFanoutError(stage string) {
	DefaultMetrics.FanoutErrors.WithLabelValues(stage).Inc()
}

// RecordPushSent records an attempted push delivery.
func RecordPushSent(channel string) {
	DefaultMetrics.PushesSent.WithLabelValues(channel).Inc()
}

// RecordPushFailed records a failed push delivery.
func RecordPushFailed(channel string) {
	DefaultMetrics.PushesFailed.WithLabelValues(channel).Inc()
}

// RecordPriceLookup records a price resolution by the layer that served it.
func RecordPriceLookup(layer string) {
	DefaultMetrics.PriceLookups.WithLabelValues(layer).Inc()
}

// ObserveOracleLatency records one external oracle call duration.
func ObserveOracleLatency(seconds float64) {
	DefaultMetrics.OracleLatency.Observe(seconds)
}

// RecordEndpointPruned increments the pruned endpoint counter.
func RecordEndpointPruned() {
	DefaultMetrics.EndpointsPruned.Inc()
}

// RecordResyncRun records a full resync run.
func RecordResyncRun(status string, walletsMonitored int) {
	DefaultMetrics.ResyncRunsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		DefaultMetrics.WalletsMonitored.Set(float64(walletsMonitored))
	}
}
