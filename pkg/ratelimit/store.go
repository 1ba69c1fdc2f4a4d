package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	"satstack.com/pkg/safe"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen int64 // unix nano
}

// Store keeps one token bucket per key and forgets keys idle for longer than ttl.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	rate    rate.Limit
	burst   int
	ttl     time.Duration
}

func NewStore(r rate.Limit, burst int, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Store{
		entries: make(map[string]*entry, 1024),
		rate:    r,
		burst:   burst,
		ttl:     ttl,
	}
}

func (s *Store) limiter(key string) *rate.Limiter {
	now := time.Now().UnixNano()

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(s.rate, s.burst), lastSeen: now}
		s.entries[key] = e
		return e.limiter
	}
	atomic.StoreInt64(&e.lastSeen, now)
	return e.limiter
}

// Allow reports whether one request for key may pass now.
func (s *Store) Allow(key string) bool {
	return s.limiter(key).Allow()
}

// Wait blocks until key has a token or ctx is done.
func (s *Store) Wait(ctx context.Context, key string) error {
	return s.limiter(key).Wait(ctx)
}

// Len is the number of tracked keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)

	safe.GoCtx(ctx, func(ctx context.Context) {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanup(time.Now())
			}
		}
	})
}

func (s *Store) cleanup(now time.Time) {
	cut := now.Add(-s.ttl).UnixNano()

	s.mu.Lock()
	for k, e := range s.entries {
		if atomic.LoadInt64(&e.lastSeen) < cut {
			delete(s.entries, k)
		}
	}
	s.mu.Unlock()
}
