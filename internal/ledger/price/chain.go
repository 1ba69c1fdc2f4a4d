package price

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"satstack.com/internal/ledger/domain"
	"satstack.com/pkg/logger"
)

// Chain asks each oracle in order; the first that knows the symbol wins.
// A failing oracle is skipped; its error is returned only when no later
// oracle has a price.
type Chain []domain.PriceOracle

func (c Chain) Price(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	var lastErr error
	for _, o := range c {
		p, ok, err := o.Price(ctx, symbol)
		if err != nil {
			logger.Warn(ctx, "price oracle failed", zap.String("symbol", symbol), zap.Error(err))
			lastErr = err
			continue
		}
		if ok {
			return p, true, nil
		}
	}
	return decimal.Zero, false, lastErr
}
