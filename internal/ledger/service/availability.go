package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"satstack.com/internal/ledger/domain"
	"satstack.com/pkg/logger"
	"satstack.com/pkg/metrics"
)

// Availability is the locked/available split of one holding at a point in time.
type Availability struct {
	Asset        string     `json:"asset"`
	Amount       int64      `json:"amount"`
	Locked       int64      `json:"locked"`
	Available    int64      `json:"available"`
	NextUnlockAt *time.Time `json:"next_unlock_at,omitempty"`

	// Clamped is set when the locked lots exceed the holding.
	Clamped bool `json:"-"`
}

// computeAvailability only counts lots with unlock_at > now. Available never
// goes below zero.
func computeAvailability(asset string, holding int64, lots []domain.Purchase, now time.Time) Availability {
	av := Availability{Asset: asset, Amount: holding}
	for _, lot := range lots {
		if !lot.Locked(now) {
			continue
		}
		av.Locked += lot.Amount
		if av.NextUnlockAt == nil || lot.UnlockAt.Before(*av.NextUnlockAt) {
			at := lot.UnlockAt
			av.NextUnlockAt = &at
		}
	}
	av.Available = holding - av.Locked
	if av.Available < 0 {
		av.Available = 0
		av.Clamped = true
	}
	return av
}

// unlockTimeFor returns when enough lots will have unlocked for amount to be
// available. lots must be sorted by unlock time.
func unlockTimeFor(holding, amount int64, lots []domain.Purchase, now time.Time) time.Time {
	var remaining int64
	for _, lot := range lots {
		if lot.Locked(now) {
			remaining += lot.Amount
		}
	}
	var last time.Time
	for _, lot := range lots {
		if !lot.Locked(now) {
			continue
		}
		remaining -= lot.Amount
		last = lot.UnlockAt
		if holding-remaining >= amount {
			return lot.UnlockAt
		}
	}
	return last
}

func reportClamped(ctx context.Context, userID int64, av Availability) {
	if !av.Clamped {
		return
	}
	metrics.IntegrityWarnings.WithLabelValues("locked_exceeds_holding").Inc()
	logger.Warn(ctx, "locked lots exceed holding, available clamped to zero",
		zap.Int64("user_id", userID),
		zap.String("asset", av.Asset),
		zap.Int64("amount", av.Amount),
		zap.Int64("locked", av.Locked),
	)
}

// LotView is one purchase lot with its lock state at query time.
type LotView struct {
	ID        int64     `json:"id"`
	Asset     string    `json:"asset"`
	Amount    int64     `json:"amount"`
	BTCSpent  int64     `json:"btc_spent"`
	CreatedAt time.Time `json:"created_at"`
	UnlockAt  time.Time `json:"unlock_at"`
	Locked    bool      `json:"locked"`
}

// LotService answers read-only questions about locks and lots.
type LotService struct {
	holdings  domain.HoldingRepo
	purchases domain.PurchaseRepo
	clock     Clock
}

func NewLotService(holdings domain.HoldingRepo, purchases domain.PurchaseRepo, opts ...Option) *LotService {
	o := buildOptions(opts)
	return &LotService{holdings: holdings, purchases: purchases, clock: o.clock}
}

// Availability reports the split for (user, asset) now.
func (s *LotService) Availability(ctx context.Context, userID int64, asset string) (Availability, error) {
	return s.AvailabilityAt(ctx, userID, asset, s.clock.Now())
}

func (s *LotService) AvailabilityAt(ctx context.Context, userID int64, asset string, now time.Time) (Availability, error) {
	asset = domain.NormalizeSymbol(asset)
	h, err := s.holdings.GetHolding(ctx, userID, asset)
	if err != nil {
		return Availability{}, domain.Persistence(err)
	}
	var amount int64
	if h != nil {
		amount = h.Amount
	}
	if asset == domain.BaseAsset {
		return Availability{Asset: asset, Amount: amount, Available: amount}, nil
	}
	lots, err := s.purchases.ListLockedLots(ctx, userID, asset, now)
	if err != nil {
		return Availability{}, domain.Persistence(err)
	}
	av := computeAvailability(asset, amount, lots, now)
	reportClamped(ctx, userID, av)
	return av, nil
}

// Lots lists every lot of (user, asset), oldest first.
func (s *LotService) Lots(ctx context.Context, userID int64, asset string) ([]LotView, error) {
	asset = domain.NormalizeSymbol(asset)
	lots, err := s.purchases.ListLots(ctx, userID, asset)
	if err != nil {
		return nil, domain.Persistence(err)
	}
	now := s.clock.Now()
	out := make([]LotView, 0, len(lots))
	for _, l := range lots {
		out = append(out, LotView{
			ID:        l.ID,
			Asset:     l.Asset,
			Amount:    l.Amount,
			BTCSpent:  l.BTCSpent,
			CreatedAt: l.CreatedAt,
			UnlockAt:  l.UnlockAt,
			Locked:    l.Locked(now),
		})
	}
	return out, nil
}
