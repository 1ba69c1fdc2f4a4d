package price

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"satstack.com/internal/ledger/domain"
	"satstack.com/pkg/metrics"
)

// Static serves prices held in memory, loaded from config and replaced on
// config reload.
type Static struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

func NewStatic(prices map[string]string) (*Static, error) {
	s := &Static{prices: map[string]decimal.Decimal{}}
	if err := s.Replace(prices); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Static) Price(_ context.Context, symbol string) (decimal.Decimal, bool, error) {
	s.mu.RLock()
	p, ok := s.prices[domain.NormalizeSymbol(symbol)]
	s.mu.RUnlock()
	if !ok {
		metrics.PriceLookupTotal.WithLabelValues("static", "miss").Inc()
		return decimal.Zero, false, nil
	}
	metrics.PriceLookupTotal.WithLabelValues("static", "hit").Inc()
	return p, true, nil
}

// Replace swaps the whole table. Nothing changes when any entry is invalid.
func (s *Static) Replace(prices map[string]string) error {
	next := make(map[string]decimal.Decimal, len(prices))
	for sym, raw := range prices {
		p, err := ParsePrice(raw)
		if err != nil {
			return fmt.Errorf("price of %s: %w", sym, err)
		}
		next[domain.NormalizeSymbol(sym)] = p
	}
	s.mu.Lock()
	s.prices = next
	s.mu.Unlock()
	return nil
}

func (s *Static) Publish(_ context.Context, symbol string, p decimal.Decimal) error {
	if !p.IsPositive() {
		return fmt.Errorf("price of %s must be positive", symbol)
	}
	s.mu.Lock()
	s.prices[domain.NormalizeSymbol(symbol)] = p
	s.mu.Unlock()
	return nil
}

// ParsePrice accepts a positive decimal string.
func ParsePrice(raw string) (decimal.Decimal, error) {
	p, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("price %s must be positive", raw)
	}
	return p, nil
}
