package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"satstack.com/internal/ledger/domain"
	"satstack.com/pkg/logger"
	"satstack.com/pkg/safe"
)

type Loader func(ctx context.Context) ([]domain.Asset, error)

// Registry keeps the tradable assets in memory. Reads only take the read lock;
// reloads are collapsed with singleflight.
type Registry struct {
	mu     sync.RWMutex
	assets map[string]domain.Asset
	loader Loader
	ttl    time.Duration
	sf     singleflight.Group
	lastAt time.Time
}

var _ domain.AssetCatalog = (*Registry)(nil)

func NewRegistry(loader Loader, ttl time.Duration) *Registry {
	return &Registry{
		assets: map[string]domain.Asset{domain.BaseAsset: baseAsset},
		loader: loader,
		ttl:    ttl,
	}
}

var baseAsset = domain.Asset{Symbol: domain.BaseAsset, Name: "Bitcoin", Kind: domain.AssetKindBase}

// StaticLoader serves a fixed asset list, typically from config.
func StaticLoader(assets func() []domain.Asset) Loader {
	return func(context.Context) ([]domain.Asset, error) { return assets(), nil }
}

func (r *Registry) Lookup(symbol string) (domain.Asset, bool) {
	r.mu.RLock()
	a, ok := r.assets[domain.NormalizeSymbol(symbol)]
	r.mu.RUnlock()
	return a, ok
}

// List returns BTC first, then the rest by symbol.
func (r *Registry) List() []domain.Asset {
	r.mu.RLock()
	out := make([]domain.Asset, 0, len(r.assets))
	for _, a := range r.assets {
		out = append(out, a)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsBase() != out[j].IsBase() {
			return out[i].IsBase()
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Reload replaces the asset set unconditionally.
func (r *Registry) Reload(ctx context.Context) error {
	_, err, _ := r.sf.Do("reload", func() (any, error) {
		list, err := r.loader(ctx)
		if err != nil {
			return nil, err
		}
		m := make(map[string]domain.Asset, len(list)+1)
		m[domain.BaseAsset] = baseAsset
		for _, a := range list {
			a.Symbol = domain.NormalizeSymbol(a.Symbol)
			if a.Symbol == "" {
				return nil, fmt.Errorf("asset with empty symbol")
			}
			if a.Symbol == domain.BaseAsset {
				a.Kind = domain.AssetKindBase
			} else if a.Kind == "" {
				a.Kind = domain.AssetKindEquity
			}
			if a.Name == "" {
				a.Name = a.Symbol
			}
			m[a.Symbol] = a
		}
		r.mu.Lock()
		r.assets = m
		r.lastAt = time.Now()
		r.mu.Unlock()
		return nil, nil
	})
	return err
}

// EnsureFresh reloads when the ttl has passed since the last load.
func (r *Registry) EnsureFresh(ctx context.Context) error {
	r.mu.RLock()
	need := r.lastAt.IsZero() || (r.ttl > 0 && time.Since(r.lastAt) > r.ttl)
	r.mu.RUnlock()
	if !need {
		return nil
	}
	return r.Reload(ctx)
}

func (r *Registry) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	safe.GoCtx(ctx, func(ctx context.Context) {
		tk := time.NewTicker(interval)
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				if err := r.EnsureFresh(ctx); err != nil {
					logger.Warn(ctx, "asset catalog refresh failed", zap.Error(err))
				}
			}
		}
	})
}
