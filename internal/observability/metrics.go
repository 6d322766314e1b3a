// ABOUTME: Prometheus instruments for the document bot
// ABOUTME: Groups all metrics in one struct wired through constructors

package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveConversations prometheus.Gauge
	MessagesTotal       *prometheus.CounterVec
	ExchangesTotal      *prometheus.CounterVec
	ExchangeInvocations prometheus.Histogram
	ArtifactsDelivered  prometheus.Counter
	ArtifactFailures    prometheus.Counter
	TranscriptionsTotal *prometheus.CounterVec
	WebhooksRejected    prometheus.Counter
	DuplicateUpdates    prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveConversations: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_conversations",
			Help:      "Number of live conversation sessions.",
		}),
		MessagesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Inbound messages by trigger classification.",
		}, []string{"trigger"}),
		ExchangesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchanges_total",
			Help:      "Completed exchanges by outcome.",
		}, []string{"outcome"}),
		ExchangeInvocations: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exchange_invocations",
			Help:      "Service invocations consumed per completed exchange.",
			Buckets:   []float64{1, 2, 3, 5, 8, 10},
		}),
		ArtifactsDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_delivered_total",
			Help:      "Generated documents successfully delivered.",
		}),
		ArtifactFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_failures_total",
			Help:      "Artifacts that could not be retrieved or delivered.",
		}),
		TranscriptionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Voice transcriptions by result.",
		}, []string{"result"}),
		WebhooksRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_rejected_total",
			Help:      "Webhook deliveries rejected for a bad secret token.",
		}),
		DuplicateUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_updates_total",
			Help:      "Webhook updates suppressed as redeliveries.",
		}),
	}
}

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
