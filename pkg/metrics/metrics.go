package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InviteValidations counts invite token validations by outcome (valid|invalid|expired).
	InviteValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoria_invite_validations_total",
			Help: "Total number of invite token validations",
		},
		[]string{"outcome"},
	)

	// InviteAcceptances counts invite redemptions by mode (authenticated|public) and result.
	InviteAcceptances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoria_invite_acceptances_total",
			Help: "Total number of invite acceptance attempts",
		},
		[]string{"mode", "result"},
	)

	// OAuthExchanges counts authorization-code exchanges by flow (login|email_account|email_account_public) and result.
	OAuthExchanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoria_oauth_exchanges_total",
			Help: "Total number of OAuth authorization code exchanges",
		},
		[]string{"flow", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "invoria_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
