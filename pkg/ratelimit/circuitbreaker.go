package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"satstack.com/pkg/metrics"
	"satstack.com/pkg/xerr"
)

type Rule struct {
	// probes allowed while half-open; 0 means 1
	MaxRequests uint32

	// closed-state counting window
	Interval time.Duration

	// >0 enables a rolling window with buckets of this size
	BucketPeriod time.Duration

	// how long the breaker stays open before probing
	Timeout time.Duration

	// trip on either condition
	TripConsecutiveFailures uint32
	TripFailureRate         float64 // 0..1
	TripMinRequests         uint32
}

// Manager hands out one breaker per resource name.
type Manager struct {
	mu sync.RWMutex
	m  map[string]*gobreaker.CircuitBreaker[any]

	defaultRule Rule
	rules       map[string]Rule
}

func NewManager(defaultRule Rule, perResource map[string]Rule) *Manager {
	if defaultRule.MaxRequests == 0 {
		defaultRule.MaxRequests = 5
	}
	if defaultRule.Timeout <= 0 {
		defaultRule.Timeout = 3 * time.Second
	}
	if defaultRule.Interval <= 0 {
		defaultRule.Interval = 10 * time.Second
	}
	if defaultRule.TripConsecutiveFailures == 0 && defaultRule.TripFailureRate == 0 {
		defaultRule.TripConsecutiveFailures = 10
	}
	if defaultRule.TripMinRequests == 0 {
		defaultRule.TripMinRequests = 20
	}

	return &Manager{
		m:           make(map[string]*gobreaker.CircuitBreaker[any], 16),
		defaultRule: defaultRule,
		rules:       perResource,
	}
}

func (m *Manager) Get(resource string) *gobreaker.CircuitBreaker[any] {
	m.mu.RLock()
	cb := m.m[resource]
	m.mu.RUnlock()
	if cb != nil {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cb = m.m[resource]; cb != nil {
		return cb
	}

	rule, ok := m.rules[resource]
	if !ok {
		rule = m.defaultRule
	}
	st := gobreaker.Settings{
		Name:         resource,
		MaxRequests:  rule.MaxRequests,
		Interval:     rule.Interval,
		BucketPeriod: rule.BucketPeriod,
		Timeout:      rule.Timeout,

		ReadyToTrip: func(c gobreaker.Counts) bool {
			if rule.TripConsecutiveFailures > 0 && c.ConsecutiveFailures >= rule.TripConsecutiveFailures {
				return true
			}
			if rule.TripFailureRate > 0 && c.Requests >= rule.TripMinRequests {
				failRate := float64(c.TotalFailures) / float64(c.Requests)
				return failRate >= rule.TripFailureRate
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CBState.WithLabelValues(name, from.String()).Set(0)
			metrics.CBState.WithLabelValues(name, to.String()).Set(1)
		},
		IsSuccessful: IsSuccessfulForBreaker,
	}

	cb = gobreaker.NewCircuitBreaker[any](st)
	m.m[resource] = cb
	return cb
}

// Execute runs fn through the resource's breaker and counts rejections.
func (m *Manager) Execute(resource string, fn func() (any, error)) (any, error) {
	v, err := m.Get(resource).Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.CBRejectTotal.WithLabelValues(resource, err.Error()).Inc()
	}
	return v, err
}

// IsSuccessfulForBreaker decides which errors say nothing about the
// dependency's health: caller cancellation and request level failures.
func IsSuccessfulForBreaker(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	if ce, ok := xerr.As(err); ok {
		switch ce.Code {
		case xerr.RequestParamsError, xerr.RecordNotFound, xerr.Conflict:
			return true
		}
	}
	return false
}
