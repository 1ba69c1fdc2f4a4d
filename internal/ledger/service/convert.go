package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"satstack.com/internal/ledger/domain"
)

var maxSmallest = decimal.NewFromInt(1<<63 - 1)

// Convert turns amount (smallest units of the source asset) into smallest
// units of the target asset at the given USD prices per whole unit. Every
// asset uses the same 1e8 scale, so the scale cancels out:
//
//	to = round(amount * fromPrice / toPrice)
//
// Rounding is half away from zero.
func Convert(amount int64, fromPrice, toPrice decimal.Decimal) (int64, error) {
	if !fromPrice.IsPositive() || !toPrice.IsPositive() {
		return 0, domain.NewError(domain.KindPriceUnavailable, "prices must be positive")
	}
	out := decimal.NewFromInt(amount).Mul(fromPrice).Div(toPrice).Round(0)
	if !out.IsPositive() {
		return 0, domain.NewError(domain.KindInvalidAmount,
			fmt.Sprintf("%s is worth less than one smallest unit of the target asset", domain.FormatAmount(amount)))
	}
	if out.GreaterThan(maxSmallest) {
		return 0, domain.NewError(domain.KindInvalidAmount, "converted amount is too large")
	}
	return out.IntPart(), nil
}

// ValueInSats prices amount of an asset in satoshis.
func ValueInSats(amount int64, price, btcPrice decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(price).Div(btcPrice).Round(0).IntPart()
}
