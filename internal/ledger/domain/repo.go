package domain

import (
	"context"
	"time"
)

// Transactor runs fn in one database transaction. Repositories called with
// txCtx join that transaction.
type Transactor interface {
	Transaction(ctx context.Context, fn func(txCtx context.Context) error) error
}

type HoldingRepo interface {
	// GetHolding returns nil, nil when the user never held asset.
	GetHolding(ctx context.Context, userID int64, asset string) (*Holding, error)
	// GetHoldingForUpdate is GetHolding with a row lock held until the transaction ends.
	GetHoldingForUpdate(ctx context.Context, userID int64, asset string) (*Holding, error)
	ListHoldings(ctx context.Context, userID int64) ([]Holding, error)
	// Credit adds amount, creating the row when missing.
	Credit(ctx context.Context, userID int64, asset string, amount int64) error
	// Debit subtracts amount only if the balance covers it.
	Debit(ctx context.Context, userID int64, asset string, amount int64) error
}

type PurchaseRepo interface {
	CreateLot(ctx context.Context, lot *Purchase) error
	// SumLocked totals lots with unlock_at > now.
	SumLocked(ctx context.Context, userID int64, asset string, now time.Time) (int64, error)
	// ListLockedLots returns lots with unlock_at > now, earliest unlock first.
	ListLockedLots(ctx context.Context, userID int64, asset string, now time.Time) ([]Purchase, error)
	// ListLots returns every lot, oldest first.
	ListLots(ctx context.Context, userID int64, asset string) ([]Purchase, error)
}

type TradeRepo interface {
	AppendTrade(ctx context.Context, trade *Trade) error
	// FindTradeByRequestID returns nil, nil when no trade carries requestID.
	FindTradeByRequestID(ctx context.Context, userID int64, requestID string) (*Trade, error)
	// ListTrades is newest first.
	ListTrades(ctx context.Context, userID int64, page, limit int) ([]Trade, error)
	// TradeDeltas nets incoming minus outgoing amounts per asset.
	TradeDeltas(ctx context.Context, userID int64) (map[string]int64, error)
}

type GrantRepo interface {
	// GetGrant returns nil, nil when no grant exists.
	GetGrant(ctx context.Context, userID int64, asset string) (*Grant, error)
	CreateGrant(ctx context.Context, grant *Grant) error
	SumGrants(ctx context.Context, userID int64) (map[string]int64, error)
}

// Store is everything the ledger services persist through.
type Store interface {
	Transactor
	HoldingRepo
	PurchaseRepo
	TradeRepo
	GrantRepo
}
