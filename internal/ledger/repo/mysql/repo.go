package mysql

import (
	"context"

	"gorm.io/gorm"

	"satstack.com/internal/ledger/domain"
)

type txKey struct{}

// Repo implements domain.Store on top of gorm.
type Repo struct {
	db *gorm.DB
}

var _ domain.Store = (*Repo)(nil)

func New(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Transaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, txKey{}, tx)
		return fn(txCtx)
	})
}

func (r *Repo) getDb(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

// Migrate creates or updates every ledger table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(domain.Models()...)
}
