// Package metrics exposes Prometheus collectors for the invitation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InvitesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "invites",
		Name:      "issued_total",
		Help:      "Invites added to the store.",
	})

	ImagesRendered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invites",
		Name:      "images_rendered_total",
		Help:      "Invitation images rendered, by operation.",
	}, []string{"op"})

	CheckIns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "invites",
		Name:      "check_ins_total",
		Help:      "Guests checked in by scan.",
	})

	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invites",
		Name:      "store_errors_total",
		Help:      "Failed calls to the invite store, by operation.",
	}, []string{"op"})

	RelayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guestbook",
		Name:      "relay_requests_total",
		Help:      "Guestbook relay calls, by operation and status.",
	}, []string{"op", "status"})

	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invites",
		Name:      "deliveries_total",
		Help:      "Invitation deliveries over WhatsApp, by result.",
	}, []string{"result"})

	HTTPRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
