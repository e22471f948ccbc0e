package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	eventsPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of outbox events successfully published to the broker",
		},
	)

	eventsFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_failed_total",
			Help: "Total number of outbox publish attempts that failed",
		},
	)

	eventsMovedToDLQTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_moved_to_dlq_total",
			Help: "Total number of events routed to the dead letter queue",
		},
	)

	ordersCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders created",
		},
	)

	ordersProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_processed_total",
			Help: "Total number of order.created events processed",
		},
	)
)

func RecordEventPublished() { eventsPublishedTotal.Inc() }

func RecordEventFailed() { eventsFailedTotal.Inc() }

func RecordEventMovedToDLQ() { eventsMovedToDLQTotal.Inc() }

func RecordOrderCreated() { ordersCreatedTotal.Inc() }

func RecordOrderProcessed() { ordersProcessedTotal.Inc() }

// Handler returns the Prometheus exposition handler for GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
