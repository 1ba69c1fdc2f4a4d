package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/singleflight"

	"satstack.com/internal/ledger/domain"
	"satstack.com/pkg/logger"
	"satstack.com/pkg/metrics"
)

// cacheJitter spreads the expiry of entries written together.
const cacheJitter = 300 * time.Millisecond

// HoldingsService lists a user's holdings with their lock split, served from
// cache when possible.
type HoldingsService struct {
	holdings  domain.HoldingRepo
	purchases domain.PurchaseRepo
	cache     HoldingsCache
	clock     Clock
	ttl       time.Duration
	jitter    time.Duration
	sf        singleflight.Group
}

func NewHoldingsService(holdings domain.HoldingRepo, purchases domain.PurchaseRepo, ttl time.Duration, opts ...Option) *HoldingsService {
	o := buildOptions(opts)
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &HoldingsService{
		holdings:  holdings,
		purchases: purchases,
		cache:     o.cache,
		clock:     o.clock,
		ttl:       ttl,
		jitter:    cacheJitter,
	}
}

func (s *HoldingsService) List(ctx context.Context, userID int64) ([]Availability, error) {
	if v, ok, err := s.cache.Get(ctx, userID); err == nil && ok {
		metrics.CacheLookupTotal.WithLabelValues("hit").Inc()
		return v, nil
	} else if err != nil {
		metrics.CacheLookupTotal.WithLabelValues("error").Inc()
		logger.Warn(ctx, "holdings cache read failed", zap.Int64("user_id", userID), zap.Error(err))
	} else {
		metrics.CacheLookupTotal.WithLabelValues("miss").Inc()
	}

	v, err, _ := s.sf.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		now := s.clock.Now()
		list, err := s.load(ctx, userID, now)
		if err != nil {
			return nil, err
		}
		if ttl := s.cacheTTL(list, now); ttl > 0 {
			if err := s.cache.Set(ctx, userID, list, ttl); err != nil {
				logger.Warn(ctx, "holdings cache write failed", zap.Int64("user_id", userID), zap.Error(err))
			}
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	shared := v.([]Availability)
	out := make([]Availability, len(shared))
	copy(out, shared)
	return out, nil
}

func (s *HoldingsService) load(ctx context.Context, userID int64, now time.Time) ([]Availability, error) {
	rows, err := s.holdings.ListHoldings(ctx, userID)
	if err != nil {
		return nil, domain.Persistence(err)
	}
	out := make([]Availability, 0, len(rows))
	for _, h := range rows {
		if h.Asset == domain.BaseAsset {
			out = append(out, Availability{Asset: h.Asset, Amount: h.Amount, Available: h.Amount})
			continue
		}
		lots, err := s.purchases.ListLockedLots(ctx, userID, h.Asset, now)
		if err != nil {
			return nil, domain.Persistence(err)
		}
		av := computeAvailability(h.Asset, h.Amount, lots, now)
		reportClamped(ctx, userID, av)
		out = append(out, av)
	}
	return out, nil
}

// cacheTTL is the jittered base ttl, capped at the next unlock so the split
// never goes stale.
func (s *HoldingsService) cacheTTL(list []Availability, now time.Time) time.Duration {
	ttl := withJitter(s.ttl, s.jitter)
	for _, av := range list {
		if av.NextUnlockAt == nil {
			continue
		}
		if d := av.NextUnlockAt.Sub(now); d < ttl {
			ttl = d
		}
	}
	return ttl
}

// withJitter adds [0, jitter) to ttl.
func withJitter(ttl, jitter time.Duration) time.Duration {
	if ttl <= 0 || jitter <= 0 {
		return ttl
	}
	return ttl + time.Duration(rand.Int63n(int64(jitter)))
}
