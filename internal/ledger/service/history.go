package service

import (
	"context"

	"satstack.com/internal/ledger/domain"
	"satstack.com/pkg/orm"
)

type TradePage struct {
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
	Trades []domain.Trade `json:"trades"`
}

type HistoryService struct {
	trades domain.TradeRepo
}

func NewHistoryService(trades domain.TradeRepo) *HistoryService {
	return &HistoryService{trades: trades}
}

// Trades returns one page of the user's trades, newest first.
func (s *HistoryService) Trades(ctx context.Context, userID int64, page, limit int) (TradePage, error) {
	page, limit = orm.NormalizePage(page, limit)
	rows, err := s.trades.ListTrades(ctx, userID, page, limit)
	if err != nil {
		return TradePage{}, domain.Persistence(err)
	}
	if rows == nil {
		rows = []domain.Trade{}
	}
	return TradePage{Page: page, Limit: limit, Trades: rows}, nil
}
