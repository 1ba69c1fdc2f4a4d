package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satstack.com/internal/ledger/domain"
)

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.grant(t, alice)
	_, err := f.settle.Settle(ctx, buy(alice, "AMZN", "1000000"))
	require.NoError(t, err)

	report, err := f.audit.Reconcile(ctx, alice)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	require.Len(t, report.Assets, 2)
	assert.Equal(t, AssetAudit{Asset: "AMZN", Granted: 0, TradeDelta: 788_751_715, Expected: 788_751_715, Actual: 788_751_715, OK: true, Locked: 788_751_715, LockedOK: true}, report.Assets[0])
	assert.Equal(t, AssetAudit{Asset: "BTC", Granted: 100_000_000, TradeDelta: -1_000_000, Expected: 99_000_000, Actual: 99_000_000, OK: true, LockedOK: true}, report.Assets[1])

	// a write that bypassed settlement
	require.NoError(t, f.repo.Credit(ctx, alice, "BTC", 5))
	report, err = f.audit.Reconcile(ctx, alice)
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	assert.False(t, report.Assets[1].OK)
	assert.Equal(t, int64(99_000_005), report.Assets[1].Actual)
}

func TestReconcileLockedAboveHolding(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.grant(t, alice)
	_, err := f.settle.Settle(ctx, buy(alice, "AMZN", "1000000"))
	require.NoError(t, err)

	// a lot written without its credit
	require.NoError(t, f.repo.CreateLot(ctx, &domain.Purchase{
		UserID:    alice,
		Asset:     "AMZN",
		Amount:    10,
		BTCSpent:  1,
		UnlockAt:  f.clock.Now().Add(time.Hour),
		CreatedAt: f.clock.Now(),
	}))

	report, err := f.audit.Reconcile(ctx, alice)
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	amzn := report.Assets[0]
	assert.True(t, amzn.OK, "balances still add up")
	assert.False(t, amzn.LockedOK)
	assert.Equal(t, int64(788_751_725), amzn.Locked)

	// once every lot has unlocked nothing is owed
	f.clock.Advance(25 * time.Hour)
	report, err = f.audit.Reconcile(ctx, alice)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, int64(0), report.Assets[0].Locked)
}

func TestReconcileEmpty(t *testing.T) {
	f := newFixture(t)
	report, err := f.audit.Reconcile(context.Background(), bob)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Empty(t, report.Assets)
}
