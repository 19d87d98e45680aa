package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	paymentIntentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intents_total",
			Help: "Payment intent creation attempts by outcome",
		},
		[]string{"outcome"},
	)

	persistenceRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persistence_retries_total",
			Help: "Store writes retried after a transient failure",
		},
		[]string{"code"},
	)

	orderTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Order status events by result",
		},
		[]string{"event", "result"},
	)

	ordersCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders placed by delivery type",
		},
		[]string{"delivery_type"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		paymentIntentsTotal,
		persistenceRetriesTotal,
		orderTransitionsTotal,
		ordersCreatedTotal,
	)
}

func RecordPaymentIntent(outcome string) {
	paymentIntentsTotal.WithLabelValues(outcome).Inc()
}

func RecordPersistenceRetry(code string) {
	persistenceRetriesTotal.WithLabelValues(code).Inc()
}

func RecordTransition(event, result string) {
	orderTransitionsTotal.WithLabelValues(event, result).Inc()
}

func RecordOrderCreated(deliveryType string) {
	ordersCreatedTotal.WithLabelValues(deliveryType).Inc()
}
