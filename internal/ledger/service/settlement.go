package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"satstack.com/internal/ledger/domain"
	"satstack.com/pkg/logger"
	"satstack.com/pkg/metrics"
)

// SettleRequest asks to convert Amount (in Unit) of From into To.
type SettleRequest struct {
	UserID    int64
	From      string
	To        string
	Amount    string
	Unit      domain.Unit
	RequestID string
}

type SettleResult struct {
	Trade *domain.Trade    `json:"trade"`
	Lot   *domain.Purchase `json:"lot,omitempty"`
	// Replayed is true when RequestID matched an earlier trade.
	Replayed bool `json:"replayed"`
}

// SettlementService executes one conversion between BTC and another asset.
type SettlementService struct {
	store   domain.Store
	catalog domain.AssetCatalog
	oracle  domain.PriceOracle
	opts    options
}

func NewSettlementService(store domain.Store, catalog domain.AssetCatalog, oracle domain.PriceOracle, opts ...Option) *SettlementService {
	return &SettlementService{
		store:   store,
		catalog: catalog,
		oracle:  oracle,
		opts:    buildOptions(opts),
	}
}

type quote struct {
	from, to   domain.Asset
	fromAmount int64
	toAmount   int64
	fromPrice  decimal.Decimal
	toPrice    decimal.Decimal
	btcPrice   decimal.Decimal
	requestID  *string
	buying     bool
}

// Settle validates req and applies it in a single transaction. On any error
// no holding, lot or trade is written.
func (s *SettlementService) Settle(ctx context.Context, req SettleRequest) (*SettleResult, error) {
	start := time.Now()
	res, err := s.settle(ctx, req)

	side := "sell"
	if domain.NormalizeSymbol(req.From) == domain.BaseAsset {
		side = "buy"
	}
	metrics.SettlementDuration.WithLabelValues(side).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.SettlementTotal.WithLabelValues(domain.KindOf(err).String()).Inc()
		fields := []zap.Field{
			zap.Int64("user_id", req.UserID),
			zap.String("from", req.From),
			zap.String("to", req.To),
			zap.String("amount", req.Amount),
			zap.Stringer("unit", req.Unit),
			zap.Error(err),
		}
		if domain.KindOf(err) == domain.KindPersistenceFailure {
			logger.Error(ctx, "settlement failed", fields...)
		} else {
			logger.Info(ctx, "settlement rejected", fields...)
		}
		return nil, err
	}

	result := "ok"
	if res.Replayed {
		result = "replayed"
	}
	metrics.SettlementTotal.WithLabelValues(result).Inc()
	logger.Info(ctx, "settlement done",
		zap.Int64("user_id", req.UserID),
		zap.Int64("trade_id", res.Trade.ID),
		zap.String("from", res.Trade.FromAsset),
		zap.String("to", res.Trade.ToAsset),
		zap.Int64("from_amount", res.Trade.FromAmount),
		zap.Int64("to_amount", res.Trade.ToAmount),
		zap.Bool("replayed", res.Replayed),
	)
	return res, nil
}

func (s *SettlementService) settle(ctx context.Context, req SettleRequest) (*SettleResult, error) {
	if req.UserID <= 0 {
		return nil, ErrInvalidUser
	}
	from, to, err := s.resolvePair(req.From, req.To)
	if err != nil {
		return nil, err
	}
	amount, err := req.Unit.Normalize(req.Amount)
	if err != nil {
		return nil, err
	}

	q := quote{from: from, to: to, fromAmount: amount, buying: from.IsBase()}
	if req.RequestID != "" {
		id := req.RequestID
		q.requestID = &id
		prev, err := s.store.FindTradeByRequestID(ctx, req.UserID, id)
		if err != nil {
			return nil, domain.Persistence(err)
		}
		if prev != nil {
			return replay(prev, q)
		}
	}

	if err := s.price(ctx, &q); err != nil {
		return nil, err
	}
	if q.toAmount, err = Convert(q.fromAmount, q.fromPrice, q.toPrice); err != nil {
		return nil, err
	}

	now := s.opts.clock.Now().UTC()
	var out SettleResult
	err = s.store.Transaction(ctx, func(txCtx context.Context) error {
		return s.apply(txCtx, req.UserID, q, now, &out)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) && q.requestID != nil {
			return nil, domain.NewError(domain.KindRequestConflict,
				fmt.Sprintf("request %s is already being settled", *q.requestID))
		}
		return nil, domain.Persistence(err)
	}

	s.opts.cache.Invalidate(ctx, req.UserID)
	return &out, nil
}

func (s *SettlementService) resolvePair(fromSym, toSym string) (domain.Asset, domain.Asset, error) {
	from, ok := s.catalog.Lookup(fromSym)
	if !ok {
		return domain.Asset{}, domain.Asset{}, domain.NewError(domain.KindInvalidAssetPair,
			fmt.Sprintf("unknown asset %q", fromSym))
	}
	to, ok := s.catalog.Lookup(toSym)
	if !ok {
		return domain.Asset{}, domain.Asset{}, domain.NewError(domain.KindInvalidAssetPair,
			fmt.Sprintf("unknown asset %q", toSym))
	}
	if from.IsBase() == to.IsBase() {
		return domain.Asset{}, domain.Asset{}, domain.NewError(domain.KindInvalidAssetPair,
			fmt.Sprintf("cannot convert %s to %s: exactly one side must be %s", from.Symbol, to.Symbol, domain.BaseAsset))
	}
	return from, to, nil
}

func (s *SettlementService) price(ctx context.Context, q *quote) error {
	lookup := func(symbol string) (decimal.Decimal, error) {
		p, ok, err := s.oracle.Price(ctx, symbol)
		if err != nil {
			return decimal.Zero, &domain.Error{Kind: domain.KindPriceUnavailable,
				Msg: fmt.Sprintf("price of %s is unavailable", symbol), Err: err}
		}
		if !ok || !p.IsPositive() {
			return decimal.Zero, domain.NewError(domain.KindPriceUnavailable,
				fmt.Sprintf("no price for %s", symbol))
		}
		return p, nil
	}

	var err error
	if q.fromPrice, err = lookup(q.from.Symbol); err != nil {
		return err
	}
	if q.toPrice, err = lookup(q.to.Symbol); err != nil {
		return err
	}
	if q.buying {
		q.btcPrice = q.fromPrice
	} else {
		q.btcPrice = q.toPrice
	}
	return nil
}

// apply runs inside the transaction. The holding row of the source asset is
// locked first so concurrent settlements of the same user and asset queue up.
func (s *SettlementService) apply(ctx context.Context, userID int64, q quote, now time.Time, out *SettleResult) error {
	h, err := s.store.GetHoldingForUpdate(ctx, userID, q.from.Symbol)
	if err != nil {
		return err
	}
	var held int64
	if h != nil {
		held = h.Amount
	}
	if held < q.fromAmount {
		return domain.NewError(domain.KindInsufficientBalance,
			fmt.Sprintf("insufficient %s: have %s, need %s",
				q.from.Symbol, domain.FormatAmount(held), domain.FormatAmount(q.fromAmount)))
	}

	if !q.buying {
		lots, err := s.store.ListLockedLots(ctx, userID, q.from.Symbol, now)
		if err != nil {
			return err
		}
		av := computeAvailability(q.from.Symbol, held, lots, now)
		reportClamped(ctx, userID, av)
		if q.fromAmount > av.Available {
			return domain.Locked(q.from.Symbol, q.fromAmount, av.Available,
				unlockTimeFor(held, q.fromAmount, lots, now))
		}
	}

	if err := s.store.Debit(ctx, userID, q.from.Symbol, q.fromAmount); err != nil {
		return err
	}

	if q.buying {
		lot := &domain.Purchase{
			UserID:    userID,
			Asset:     q.to.Symbol,
			Amount:    q.toAmount,
			BTCSpent:  q.fromAmount,
			UnlockAt:  now.Add(s.opts.lockDuration),
			CreatedAt: now,
		}
		if err := s.store.CreateLot(ctx, lot); err != nil {
			return err
		}
		out.Lot = lot
	}
	if err := s.store.Credit(ctx, userID, q.to.Symbol, q.toAmount); err != nil {
		return err
	}

	trade := &domain.Trade{
		UserID:       userID,
		RequestID:    q.requestID,
		FromAsset:    q.from.Symbol,
		ToAsset:      q.to.Symbol,
		FromAmount:   q.fromAmount,
		ToAmount:     q.toAmount,
		FromPriceUSD: q.fromPrice,
		ToPriceUSD:   q.toPrice,
		BTCPriceUSD:  q.btcPrice,
		CreatedAt:    now,
	}
	if err := s.store.AppendTrade(ctx, trade); err != nil {
		return err
	}
	out.Trade = trade
	return nil
}

func replay(prev *domain.Trade, q quote) (*SettleResult, error) {
	if prev.FromAsset != q.from.Symbol || prev.ToAsset != q.to.Symbol || prev.FromAmount != q.fromAmount {
		return nil, domain.NewError(domain.KindRequestConflict,
			fmt.Sprintf("request %s was used for %s %s -> %s",
				*q.requestID, domain.FormatAmount(prev.FromAmount), prev.FromAsset, prev.ToAsset))
	}
	return &SettleResult{Trade: prev, Replayed: true}, nil
}
