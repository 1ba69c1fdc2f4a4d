package service

import (
	"context"

	"github.com/shopspring/decimal"

	"satstack.com/internal/ledger/domain"
)

type Position struct {
	Asset     string           `json:"asset"`
	Amount    int64            `json:"amount"`
	PriceUSD  *decimal.Decimal `json:"price_usd,omitempty"`
	ValueSats int64            `json:"value_sats"`
	Priced    bool             `json:"priced"`
}

// Portfolio values every holding in satoshis. OpportunityCostSats is the
// total minus the granted BTC: negative means holding BTC would have done
// better.
type Portfolio struct {
	Positions           []Position      `json:"positions"`
	BTCPriceUSD         decimal.Decimal `json:"btc_price_usd"`
	TotalSats           int64           `json:"total_sats"`
	GrantedSats         int64           `json:"granted_sats"`
	OpportunityCostSats int64           `json:"opportunity_cost_sats"`
}

type PortfolioService struct {
	holdings domain.HoldingRepo
	grants   domain.GrantRepo
	oracle   domain.PriceOracle
}

func NewPortfolioService(holdings domain.HoldingRepo, grants domain.GrantRepo, oracle domain.PriceOracle) *PortfolioService {
	return &PortfolioService{holdings: holdings, grants: grants, oracle: oracle}
}

func (s *PortfolioService) Value(ctx context.Context, userID int64) (*Portfolio, error) {
	btcPrice, ok, err := s.oracle.Price(ctx, domain.BaseAsset)
	if err != nil || !ok || !btcPrice.IsPositive() {
		return nil, &domain.Error{Kind: domain.KindPriceUnavailable, Msg: "no BTC price", Err: err}
	}

	rows, err := s.holdings.ListHoldings(ctx, userID)
	if err != nil {
		return nil, domain.Persistence(err)
	}
	grants, err := s.grants.SumGrants(ctx, userID)
	if err != nil {
		return nil, domain.Persistence(err)
	}

	p := &Portfolio{Positions: make([]Position, 0, len(rows)), BTCPriceUSD: btcPrice}
	for _, h := range rows {
		pos := Position{Asset: h.Asset, Amount: h.Amount}
		if h.Asset == domain.BaseAsset {
			bp := btcPrice
			pos.PriceUSD, pos.ValueSats, pos.Priced = &bp, h.Amount, true
		} else if price, ok, err := s.oracle.Price(ctx, h.Asset); err == nil && ok && price.IsPositive() {
			pos.PriceUSD = &price
			pos.ValueSats = ValueInSats(h.Amount, price, btcPrice)
			pos.Priced = true
		}
		if pos.Priced {
			p.TotalSats += pos.ValueSats
		}
		p.Positions = append(p.Positions, pos)
	}
	p.GrantedSats = grants[domain.BaseAsset]
	p.OpportunityCostSats = p.TotalSats - p.GrantedSats
	return p, nil
}
