package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "satstack"

var (
	RateLimitBlockTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_block_total",
			Help:      "Total number of rate limited HTTP requests.",
		},
		[]string{"route"},
	)

	CBRejectTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuitbreaker_reject_total",
			Help:      "Total number of calls rejected by an open circuit breaker.",
		},
		[]string{"resource", "reason"},
	)

	CBState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuitbreaker_state",
			Help:      "Circuit breaker state (0/1).",
		},
		[]string{"resource", "state"}, // closed/open/half-open
	)
)
