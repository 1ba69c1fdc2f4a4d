package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"satstack.com/internal/ledger/domain"
)

func (r *Repo) GetGrant(ctx context.Context, userID int64, asset string) (*domain.Grant, error) {
	var g domain.Grant
	err := r.getDb(ctx).Where("user_id = ? AND asset = ?", userID, asset).First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get grant: %w", err)
	}
	return &g, nil
}

func (r *Repo) CreateGrant(ctx context.Context, grant *domain.Grant) error {
	if err := r.getDb(ctx).Create(grant).Error; err != nil {
		return fmt.Errorf("create grant: %w", err)
	}
	return nil
}

func (r *Repo) SumGrants(ctx context.Context, userID int64) (map[string]int64, error) {
	var rows []assetSum
	err := r.getDb(ctx).Model(&domain.Grant{}).
		Select("asset, COALESCE(SUM(amount), 0) AS total").
		Where("user_id = ?", userID).
		Group("asset").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sum grants: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, s := range rows {
		out[s.Asset] = s.Total
	}
	return out, nil
}
