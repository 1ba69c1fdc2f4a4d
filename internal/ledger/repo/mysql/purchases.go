package mysql

import (
	"context"
	"fmt"
	"time"

	"satstack.com/internal/ledger/domain"
)

func (r *Repo) CreateLot(ctx context.Context, lot *domain.Purchase) error {
	if err := r.getDb(ctx).Create(lot).Error; err != nil {
		return fmt.Errorf("create lot %s: %w", lot.Asset, err)
	}
	return nil
}

func (r *Repo) SumLocked(ctx context.Context, userID int64, asset string, now time.Time) (int64, error) {
	var total int64
	err := r.getDb(ctx).Model(&domain.Purchase{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND asset = ? AND unlock_at > ?", userID, asset, now.UTC()).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("sum locked %s: %w", asset, err)
	}
	return total, nil
}

func (r *Repo) ListLockedLots(ctx context.Context, userID int64, asset string, now time.Time) ([]domain.Purchase, error) {
	var lots []domain.Purchase
	err := r.getDb(ctx).
		Where("user_id = ? AND asset = ? AND unlock_at > ?", userID, asset, now.UTC()).
		Order("unlock_at ASC, id ASC").
		Find(&lots).Error
	if err != nil {
		return nil, fmt.Errorf("list locked lots %s: %w", asset, err)
	}
	return lots, nil
}

func (r *Repo) ListLots(ctx context.Context, userID int64, asset string) ([]domain.Purchase, error) {
	var lots []domain.Purchase
	err := r.getDb(ctx).
		Where("user_id = ? AND asset = ?", userID, asset).
		Order("created_at ASC, id ASC").
		Find(&lots).Error
	if err != nil {
		return nil, fmt.Errorf("list lots %s: %w", asset, err)
	}
	return lots, nil
}
