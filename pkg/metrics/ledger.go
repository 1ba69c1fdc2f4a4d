package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SettlementTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settlement_total",
		Help:      "Settlement attempts by outcome (ok or error kind).",
	}, []string{"result"})

	SettlementDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "settlement_duration_seconds",
		Help:      "Settlement latency including the database transaction.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms ~ 8s
	}, []string{"side"})

	GrantTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "grant_total",
		Help:      "Base asset grants by outcome (created, existing, error).",
	}, []string{"result"})

	PriceLookupTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "price_lookup_total",
		Help:      "Price oracle lookups by source and outcome.",
	}, []string{"source", "result"})

	CacheLookupTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "holdings_cache_total",
		Help:      "Holdings cache lookups (hit, miss, error).",
	}, []string{"result"})

	IntegrityWarnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "integrity_warnings_total",
		Help:      "Ledger data-integrity findings (locked_exceeds_holding, conservation).",
	}, []string{"check"})
)
