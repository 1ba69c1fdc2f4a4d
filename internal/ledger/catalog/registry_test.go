package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satstack.com/internal/ledger/domain"
)

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry(StaticLoader(func() []domain.Asset {
		return []domain.Asset{
			{Symbol: "amzn", Name: "Amazon"},
			{Symbol: "GLD", Name: "Gold", Kind: domain.AssetKindCommodity},
			{Symbol: "btc", Name: "whatever", Kind: domain.AssetKindEquity},
		}
	}), time.Minute)

	_, ok := r.Lookup("AMZN")
	assert.False(t, ok, "not loaded yet")
	b, ok := r.Lookup("btc")
	require.True(t, ok)
	assert.True(t, b.IsBase())

	require.NoError(t, r.EnsureFresh(context.Background()))

	a, ok := r.Lookup(" amzn ")
	require.True(t, ok)
	assert.Equal(t, "AMZN", a.Symbol)
	assert.Equal(t, domain.AssetKindEquity, a.Kind)

	b, ok = r.Lookup("BTC")
	require.True(t, ok)
	assert.Equal(t, domain.AssetKindBase, b.Kind)

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"BTC", "AMZN", "GLD"}, []string{list[0].Symbol, list[1].Symbol, list[2].Symbol})
}

func TestRegistryReloadFailureKeepsAssets(t *testing.T) {
	var fail atomic.Bool
	r := NewRegistry(func(context.Context) ([]domain.Asset, error) {
		if fail.Load() {
			return nil, errors.New("source down")
		}
		return []domain.Asset{{Symbol: "TSLA"}}, nil
	}, 0)
	require.NoError(t, r.Reload(context.Background()))

	fail.Store(true)
	assert.Error(t, r.Reload(context.Background()))
	_, ok := r.Lookup("TSLA")
	assert.True(t, ok)
}

func TestRegistryReloadCollapses(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	r := NewRegistry(func(context.Context) ([]domain.Asset, error) {
		calls.Add(1)
		<-release
		return []domain.Asset{{Symbol: "SPY"}}, nil
	}, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Reload(context.Background())
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestRegistryRejectsEmptySymbol(t *testing.T) {
	r := NewRegistry(StaticLoader(func() []domain.Asset { return []domain.Asset{{Symbol: " "}} }), 0)
	assert.Error(t, r.Reload(context.Background()))
}
