package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"satstack.com/internal/ledger/catalog"
	"satstack.com/internal/ledger/domain"
	"satstack.com/internal/ledger/ledgertest"
	"satstack.com/internal/ledger/price"
	"satstack.com/internal/ledger/repo/mysql"
)

const (
	alice int64 = 1001
	bob   int64 = 1002
)

type fixture struct {
	repo    *mysql.Repo
	clock   *ledgertest.Clock
	prices  *price.Static
	catalog *catalog.Registry
	grants  *GrantService
	settle  *SettlementService
	lots    *LotService
	audit   *AuditService
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		repo:  mysql.New(ledgertest.NewDB(t)),
		clock: ledgertest.NewClock(time.Time{}),
	}

	var err error
	f.prices, err = price.NewStatic(map[string]string{
		"BTC":  "115000",
		"AMZN": "145.80",
		"GLD":  "3400",
	})
	require.NoError(t, err)

	f.catalog = catalog.NewRegistry(catalog.StaticLoader(func() []domain.Asset {
		return []domain.Asset{
			{Symbol: "AMZN", Name: "Amazon", Kind: domain.AssetKindEquity},
			{Symbol: "GLD", Name: "Gold", Kind: domain.AssetKindCommodity},
			{Symbol: "TSLA", Name: "Tesla", Kind: domain.AssetKindEquity},
		}
	}), 0)
	require.NoError(t, f.catalog.Reload(context.Background()))

	opts = append([]Option{WithClock(f.clock)}, opts...)
	f.grants = NewGrantService(f.repo, DefaultGrant, opts...)
	f.settle = NewSettlementService(f.repo, f.catalog, f.prices, opts...)
	f.lots = NewLotService(f.repo, f.repo, opts...)
	f.audit = NewAuditService(f.repo, WithClock(f.clock))
	return f
}

func (f *fixture) grant(t *testing.T, userID int64) {
	t.Helper()
	_, _, err := f.grants.EnsureGrant(context.Background(), userID)
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, userID int64, asset string) int64 {
	t.Helper()
	h, err := f.repo.GetHolding(context.Background(), userID, asset)
	require.NoError(t, err)
	if h == nil {
		return 0
	}
	return h.Amount
}

type snapshot struct {
	holdings []domain.Holding
	lots     []domain.Purchase
	trades   []domain.Trade
}

func (f *fixture) snapshot(t *testing.T, userID int64) snapshot {
	t.Helper()
	ctx := context.Background()
	var s snapshot
	var err error
	s.holdings, err = f.repo.ListHoldings(ctx, userID)
	require.NoError(t, err)
	for _, a := range []string{"AMZN", "GLD", "TSLA"} {
		lots, err := f.repo.ListLots(ctx, userID, a)
		require.NoError(t, err)
		s.lots = append(s.lots, lots...)
	}
	s.trades, err = f.repo.ListTrades(ctx, userID, 0, 0)
	require.NoError(t, err)
	return s
}

func (f *fixture) requireConsistent(t *testing.T, userID int64) {
	t.Helper()
	report, err := f.audit.Reconcile(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, report.Consistent, "%+v", report.Assets)
}

func buy(userID int64, asset, sats string) SettleRequest {
	return SettleRequest{UserID: userID, From: "BTC", To: asset, Amount: sats, Unit: domain.UnitSmallest}
}

func sell(userID int64, asset, amount string) SettleRequest {
	return SettleRequest{UserID: userID, From: asset, To: "BTC", Amount: amount, Unit: domain.UnitSmallest}
}
