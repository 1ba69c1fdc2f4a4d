package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"satstack.com/internal/ledger/domain"
)

func (r *Repo) GetHolding(ctx context.Context, userID int64, asset string) (*domain.Holding, error) {
	return r.getHolding(r.getDb(ctx), userID, asset)
}

// GetHoldingForUpdate locks the row until the surrounding transaction ends.
// Concurrent settlements for the same user and asset queue here.
func (r *Repo) GetHoldingForUpdate(ctx context.Context, userID int64, asset string) (*domain.Holding, error) {
	return r.getHolding(r.getDb(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), userID, asset)
}

func (r *Repo) getHolding(db *gorm.DB, userID int64, asset string) (*domain.Holding, error) {
	var h domain.Holding
	err := db.Where("user_id = ? AND asset = ?", userID, asset).First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get holding %s: %w", asset, err)
	}
	return &h, nil
}

func (r *Repo) ListHoldings(ctx context.Context, userID int64) ([]domain.Holding, error) {
	var rows []domain.Holding
	err := r.getDb(ctx).
		Where("user_id = ? AND amount > 0", userID).
		Order("asset ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	return rows, nil
}

// Credit is an upsert: amount = amount + ?.
func (r *Repo) Credit(ctx context.Context, userID int64, asset string, amount int64) error {
	now := time.Now().UTC()
	h := domain.Holding{UserID: userID, Asset: asset, Amount: amount, CreatedAt: now, UpdatedAt: now}
	err := r.getDb(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "asset"}},
		DoUpdates: clause.Assignments(map[string]any{
			"amount":     gorm.Expr("amount + ?", amount),
			"updated_at": now,
		}),
	}).Create(&h).Error
	if err != nil {
		return fmt.Errorf("credit %s: %w", asset, err)
	}
	return nil
}

// Debit only succeeds when the stored balance covers amount.
func (r *Repo) Debit(ctx context.Context, userID int64, asset string, amount int64) error {
	res := r.getDb(ctx).Model(&domain.Holding{}).
		Where("user_id = ? AND asset = ? AND amount >= ?", userID, asset, amount).
		Updates(map[string]any{
			"amount":     gorm.Expr("amount - ?", amount),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("debit %s: %w", asset, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.NewError(domain.KindInsufficientBalance,
			fmt.Sprintf("balance of %s does not cover %s", asset, domain.FormatAmount(amount)))
	}
	return nil
}
