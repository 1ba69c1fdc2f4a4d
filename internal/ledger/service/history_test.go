package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satstack.com/pkg/orm"
)

func TestHistoryTrades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.grant(t, alice)

	for _, sats := range []string{"1000", "2000", "3000"} {
		_, err := f.settle.Settle(ctx, buy(alice, "AMZN", sats))
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}

	svc := NewHistoryService(f.repo)
	page, err := svc.Trades(ctx, alice, 1, 2)
	require.NoError(t, err)
	require.Len(t, page.Trades, 2)
	assert.Equal(t, int64(3000), page.Trades[0].FromAmount)
	assert.Equal(t, int64(2000), page.Trades[1].FromAmount)

	page, err = svc.Trades(ctx, alice, 2, 2)
	require.NoError(t, err)
	require.Len(t, page.Trades, 1)
	assert.Equal(t, int64(1000), page.Trades[0].FromAmount)

	page, err = svc.Trades(ctx, alice, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, orm.DefaultLimit, page.Limit)
	assert.Len(t, page.Trades, 3)

	page, err = svc.Trades(ctx, bob, 1, 10)
	require.NoError(t, err)
	assert.NotNil(t, page.Trades)
	assert.Empty(t, page.Trades)
}
