// Package metrics exposes pushd's Prometheus metrics. Counters live on the
// default registry and are served by promhttp on GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubscriptionsCreated counts successful subscribe calls.
	SubscriptionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pushd_subscriptions_created_total",
		Help: "Number of mock push subscriptions created.",
	})

	// SubscriptionsExpired counts explicit expire calls.
	SubscriptionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pushd_subscriptions_expired_total",
		Help: "Number of subscriptions marked expired.",
	})

	// NotificationsStored counts notifications decrypted and appended to
	// the message log.
	NotificationsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pushd_notifications_stored_total",
		Help: "Number of notifications decrypted and stored.",
	})

	// NotificationsRejected counts rejected notifications by error code.
	NotificationsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushd_notifications_rejected_total",
			Help: "Number of notifications rejected, by error code.",
		},
		[]string{"code"},
	)

	// HTTPRequests counts HTTP requests by method, route and status.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushd_http_requests_total",
			Help: "Number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)
)
