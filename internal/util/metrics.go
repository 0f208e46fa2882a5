package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartSessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_sessions_created_total",
		Help: "Total number of cart sessions created",
	})

	CartItemsAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_items_added_total",
		Help: "Total number of licenses added to carts",
	})

	CartItemsRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_items_removed_total",
		Help: "Total number of licenses removed from carts",
	})

	CartConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_conflicts_total",
		Help: "Total number of rejected cart mutations",
	}, []string{"reason"})

	CheckoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_total",
		Help: "Total number of carts settled",
	})

	CheckoutsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_failed_total",
		Help: "Total number of rejected checkout attempts",
	}, []string{"reason"})

	PaymentIntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_intents_total",
		Help: "Total number of payment intents created",
	}, []string{"gateway"})

	PaymentsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_completed_total",
		Help: "Total number of payments completed",
	})

	PaymentsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_expired_total",
		Help: "Total number of pending payments expired by the sweep",
	})

	CartsAbandonedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carts_abandoned_total",
		Help: "Total number of idle carts expired by the sweep",
	})

	BrandsIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brands_ingested_total",
		Help: "Total number of brand records written by ingestion",
	}, []string{"action"})

	IngestErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_errors_total",
		Help: "Total number of per-record ingestion errors",
	})

	SettlementsAdvancedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlements_advanced_total",
		Help: "Total number of checkout transactions advanced to completed",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
