// Package metrics exposes the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_total",
		Help: "Checkout attempts by payment method and outcome.",
	}, []string{"payment_method", "outcome"})

	PaymentsFinalizedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_finalized_total",
		Help: "Payment finalizations by payment method and outcome.",
	}, []string{"payment_method", "outcome"})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Processor webhook events by type and outcome.",
	}, []string{"type", "outcome"})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Order status transitions.",
	}, []string{"from", "to"})

	OutboxPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Outbox events handed to the broker by outcome.",
	}, []string{"outcome"})

	ProcessorCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_processor_calls_total",
		Help: "Card processor API calls by operation and outcome.",
	}, []string{"operation", "outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
