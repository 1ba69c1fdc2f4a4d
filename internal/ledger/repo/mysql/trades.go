package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"satstack.com/internal/ledger/domain"
	"satstack.com/pkg/orm"
)

func (r *Repo) AppendTrade(ctx context.Context, trade *domain.Trade) error {
	if err := r.getDb(ctx).Create(trade).Error; err != nil {
		return fmt.Errorf("append trade: %w", err)
	}
	return nil
}

func (r *Repo) FindTradeByRequestID(ctx context.Context, userID int64, requestID string) (*domain.Trade, error) {
	var t domain.Trade
	err := r.getDb(ctx).Where("user_id = ? AND request_id = ?", userID, requestID).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find trade by request id: %w", err)
	}
	return &t, nil
}

func (r *Repo) ListTrades(ctx context.Context, userID int64, page, limit int) ([]domain.Trade, error) {
	var rows []domain.Trade
	q := r.getDb(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC")
	if err := orm.ApplyPagination(q, page, limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	return rows, nil
}

type assetSum struct {
	Asset string
	Total int64
}

func (r *Repo) TradeDeltas(ctx context.Context, userID int64) (map[string]int64, error) {
	var in, out []assetSum
	err := r.getDb(ctx).Model(&domain.Trade{}).
		Select("to_asset AS asset, COALESCE(SUM(to_amount), 0) AS total").
		Where("user_id = ?", userID).
		Group("to_asset").
		Scan(&in).Error
	if err != nil {
		return nil, fmt.Errorf("sum trade credits: %w", err)
	}
	err = r.getDb(ctx).Model(&domain.Trade{}).
		Select("from_asset AS asset, COALESCE(SUM(from_amount), 0) AS total").
		Where("user_id = ?", userID).
		Group("from_asset").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("sum trade debits: %w", err)
	}

	deltas := make(map[string]int64, len(in)+len(out))
	for _, s := range in {
		deltas[s.Asset] += s.Total
	}
	for _, s := range out {
		deltas[s.Asset] -= s.Total
	}
	return deltas, nil
}
