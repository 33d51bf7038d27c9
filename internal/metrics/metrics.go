package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// provider lifecycle stages
	ProviderEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_events_total",
			Help: "Provider events processed, by provider, stage and canonical status",
		},
		[]string{"provider", "stage", "status"},
	)
	ProviderFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_failures_total",
			Help: "Provider API or payload failures, by provider and stage",
		},
		[]string{"provider", "stage"},
	)

	// notification side effects
	NotificationsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "purchase_notifications_sent_total",
			Help: "Purchase confirmation emails sent",
		},
	)
	NotificationsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "purchase_notifications_failed_total",
			Help: "Purchase confirmation emails that could not be sent",
		},
	)

	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(ProviderEvents)
	prometheus.MustRegister(ProviderFailures)
	prometheus.MustRegister(NotificationsSent)
	prometheus.MustRegister(NotificationsFailed)
	prometheus.MustRegister(WorkerQueueDepth)
}
