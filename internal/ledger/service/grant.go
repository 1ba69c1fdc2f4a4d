package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"satstack.com/internal/ledger/domain"
	"satstack.com/pkg/logger"
	"satstack.com/pkg/metrics"
	"satstack.com/pkg/xerr"
)

// ErrInvalidUser rejects ids the identity layer never issues.
var ErrInvalidUser = xerr.New(xerr.RequestParamsError, "user id must be positive")

// GrantService credits the starting BTC balance once per user.
type GrantService struct {
	store  domain.Store
	amount int64
	opts   options
}

func NewGrantService(store domain.Store, amount int64, opts ...Option) *GrantService {
	if amount <= 0 {
		amount = DefaultGrant
	}
	return &GrantService{store: store, amount: amount, opts: buildOptions(opts)}
}

// EnsureGrant returns the user's grant, creating and crediting it on first
// call. created reports whether this call did the credit.
func (s *GrantService) EnsureGrant(ctx context.Context, userID int64) (grant *domain.Grant, created bool, err error) {
	if userID <= 0 {
		return nil, false, ErrInvalidUser
	}

	err = s.store.Transaction(ctx, func(txCtx context.Context) error {
		existing, err := s.store.GetGrant(txCtx, userID, domain.BaseAsset)
		if err != nil {
			return err
		}
		if existing != nil {
			grant = existing
			return nil
		}
		g := &domain.Grant{
			UserID:    userID,
			Asset:     domain.BaseAsset,
			Amount:    s.amount,
			CreatedAt: s.opts.clock.Now().UTC(),
		}
		if err := s.store.CreateGrant(txCtx, g); err != nil {
			return err
		}
		if err := s.store.Credit(txCtx, userID, domain.BaseAsset, g.Amount); err != nil {
			return err
		}
		grant, created = g, true
		return nil
	})

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// lost a race with a concurrent first call
		grant, err = s.store.GetGrant(ctx, userID, domain.BaseAsset)
		created = false
		if err == nil && grant == nil {
			err = errors.New("grant vanished after duplicate key")
		}
	}
	if err != nil {
		metrics.GrantTotal.WithLabelValues("error").Inc()
		logger.Error(ctx, "grant failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, false, domain.Persistence(err)
	}

	if created {
		metrics.GrantTotal.WithLabelValues("created").Inc()
		logger.Info(ctx, "base grant credited", zap.Int64("user_id", userID), zap.Int64("amount", grant.Amount))
		s.opts.cache.Invalidate(ctx, userID)
	} else {
		metrics.GrantTotal.WithLabelValues("existing").Inc()
	}
	return grant, created, nil
}
