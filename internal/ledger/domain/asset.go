package domain

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// BaseAsset anchors every conversion; one side of each trade is always BTC.
const BaseAsset = "BTC"

// Scale is the number of smallest units per whole unit for every asset.
const Scale int64 = 100_000_000

type AssetKind string

const (
	AssetKindBase      AssetKind = "base"
	AssetKindEquity    AssetKind = "equity"
	AssetKindCommodity AssetKind = "commodity"
)

type Asset struct {
	Symbol string    `json:"symbol" mapstructure:"symbol"`
	Name   string    `json:"name" mapstructure:"name"`
	Kind   AssetKind `json:"kind" mapstructure:"kind"`
}

func (a Asset) IsBase() bool { return a.Symbol == BaseAsset }

// NormalizeSymbol upper-cases and trims user supplied symbols.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// AssetCatalog resolves the tradable assets.
type AssetCatalog interface {
	Lookup(symbol string) (Asset, bool)
}

// PriceOracle returns the USD price of one whole unit. ok=false means the
// symbol has no price; err reports a failing source.
type PriceOracle interface {
	Price(ctx context.Context, symbol string) (price decimal.Decimal, ok bool, err error)
}
