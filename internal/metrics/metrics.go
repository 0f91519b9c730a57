// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_login_attempts_total",
		Help: "Login attempts by outcome",
	}, []string{"status"})

	RegistrationAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_registration_attempts_total",
		Help: "Registration attempts by outcome",
	}, []string{"status"})

	TokenRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_token_refresh_total",
		Help: "Token refreshes by outcome",
	}, []string{"status"})

	// AuthRejectionsTotal counts gate rejections by sub-reason (missing, invalid, expired, ...).
	AuthRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_auth_rejections_total",
		Help: "Requests rejected by the authorization gate",
	}, []string{"reason"})

	PasswordResetTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_password_reset_total",
		Help: "Password recovery steps by stage and outcome",
	}, []string{"stage", "status"})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_events_published_total",
		Help: "Account events handed to the broker",
	}, []string{"type", "status"})

	RateLimitExceededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_rate_limit_exceeded_total",
		Help: "Requests rejected by the per-IP rate limiter",
	})
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusLocked  = "locked"
	StatusError   = "error"
)
