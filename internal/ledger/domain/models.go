package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is a user's balance of one asset in smallest units.
type Holding struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	UserID    int64     `gorm:"column:user_id;not null;uniqueIndex:uk_holding_user_asset" json:"user_id"`
	Asset     string    `gorm:"column:asset;type:varchar(16);not null;uniqueIndex:uk_holding_user_asset" json:"asset"`
	Amount    int64     `gorm:"column:amount;not null;default:0" json:"amount"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Holding) TableName() string { return "holdings" }

// Purchase is one non-base lot. Rows are written once and never updated.
type Purchase struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"column:user_id;not null;index:idx_purchase_user_asset_unlock,priority:1" json:"user_id"`
	Asset     string    `gorm:"column:asset;type:varchar(16);not null;index:idx_purchase_user_asset_unlock,priority:2" json:"asset"`
	Amount    int64     `gorm:"column:amount;not null" json:"amount"`
	BTCSpent  int64     `gorm:"column:btc_spent;not null" json:"btc_spent"`
	UnlockAt  time.Time `gorm:"column:unlock_at;not null;index:idx_purchase_user_asset_unlock,priority:3" json:"unlock_at"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (Purchase) TableName() string { return "purchases" }

// Locked reports whether the lot still counts against availability at now.
func (p Purchase) Locked(now time.Time) bool { return p.UnlockAt.After(now) }

// Trade is the append-only record of one executed conversion. Prices are
// USD per whole unit at execution.
type Trade struct {
	ID           int64           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID       int64           `gorm:"column:user_id;not null;index:idx_trade_user_created,priority:1;uniqueIndex:uk_trade_user_request,priority:1" json:"user_id"`
	RequestID    *string         `gorm:"column:request_id;type:varchar(64);uniqueIndex:uk_trade_user_request,priority:2" json:"request_id,omitempty"`
	FromAsset    string          `gorm:"column:from_asset;type:varchar(16);not null" json:"from_asset"`
	ToAsset      string          `gorm:"column:to_asset;type:varchar(16);not null" json:"to_asset"`
	FromAmount   int64           `gorm:"column:from_amount;not null" json:"from_amount"`
	ToAmount     int64           `gorm:"column:to_amount;not null" json:"to_amount"`
	FromPriceUSD decimal.Decimal `gorm:"column:from_price_usd;type:decimal(24,8);not null" json:"from_price_usd"`
	ToPriceUSD   decimal.Decimal `gorm:"column:to_price_usd;type:decimal(24,8);not null" json:"to_price_usd"`
	BTCPriceUSD  decimal.Decimal `gorm:"column:btc_price_usd;type:decimal(24,8);not null" json:"btc_price_usd"`
	CreatedAt    time.Time       `gorm:"column:created_at;not null;index:idx_trade_user_created,priority:2" json:"created_at"`
}

func (Trade) TableName() string { return "trades" }

// Grant is the one-off starting balance credited to a new player.
type Grant struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"column:user_id;not null;uniqueIndex:uk_grant_user_asset" json:"user_id"`
	Asset     string    `gorm:"column:asset;type:varchar(16);not null;uniqueIndex:uk_grant_user_asset" json:"asset"`
	Amount    int64     `gorm:"column:amount;not null" json:"amount"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (Grant) TableName() string { return "grants" }

// Models lists every table for AutoMigrate.
func Models() []any {
	return []any{&Holding{}, &Purchase{}, &Trade{}, &Grant{}}
}
