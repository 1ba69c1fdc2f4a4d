package app

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"satstack.com/internal/ledger"
	"satstack.com/internal/ledger/catalog"
	"satstack.com/internal/ledger/domain"
	"satstack.com/internal/ledger/price"
	"satstack.com/pkg/logger"
	"satstack.com/pkg/safe"
)

// hotConfig owns the reloadable parts of Cfg: static prices and the asset
// list. Each reload swaps in a freshly decoded Cfg; nothing writes to one
// after it is published.
type hotConfig struct {
	cur      atomic.Pointer[ledger.Cfg]
	static   *price.Static
	registry *catalog.Registry
}

func newHotConfig(cfg *ledger.Cfg, static *price.Static) *hotConfig {
	h := &hotConfig{static: static}
	h.cur.Store(cfg)
	h.registry = catalog.NewRegistry(catalog.StaticLoader(h.assets), cfg.Ledger.AssetRefresh)
	return h
}

func (h *hotConfig) assets() []domain.Asset {
	return h.cur.Load().Assets
}

func (h *hotConfig) apply(ctx context.Context, next *ledger.Cfg) {
	h.cur.Store(next)
	if err := h.static.Replace(next.Prices.Static); err != nil {
		logger.Warn(ctx, "static prices not reloaded", zap.Error(err))
	}
	if err := h.registry.Reload(ctx); err != nil {
		logger.Warn(ctx, "assets not reloaded", zap.Error(err))
	}
	logger.Info(ctx, "config applied",
		zap.Int("prices", len(next.Prices.Static)),
		zap.Int("assets", len(next.Assets)))
}

// run applies updates until ctx ends.
func (h *hotConfig) run(ctx context.Context, updates <-chan *ledger.Cfg) {
	safe.GoCtx(ctx, func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case next := <-updates:
				h.apply(ctx, next)
			}
		}
	})
}

// offer hands next to the applier, replacing an update it has not taken yet.
func offer(updates chan *ledger.Cfg, next *ledger.Cfg) {
	for {
		select {
		case updates <- next:
			return
		default:
		}
		select {
		case <-updates:
		default:
		}
	}
}
