package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"satstack.com/internal/ledger"
	ledgerhttp "satstack.com/internal/ledger/http"
	"satstack.com/internal/ledger/price"
	"satstack.com/internal/ledger/repo/mysql"
	"satstack.com/internal/ledger/service"
	"satstack.com/pkg/config"
	"satstack.com/pkg/logger"
	"satstack.com/pkg/ratelimit"
	"satstack.com/pkg/trace"
	"satstack.com/pkg/xredis"
)

const ServiceName = "ledger-service"

// Run starts the ledger service and blocks until ctx is cancelled.
func Run(ctx context.Context) error {
	updates := make(chan *ledger.Cfg, 1)
	cfg, err := config.Watch(ServiceName, func(next *ledger.Cfg) { offer(updates, next) })
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.InitWithFile(cfg.Name, cfg.Log.Level, cfg.Log.File)
	defer logger.Sync()
	logger.Info(ctx, "service starting", zap.String("addr", cfg.HTTP.Addr))

	if cfg.OTel.Enabled {
		shutdownTracer, err := trace.InitTrace(ctx, cfg.Name, cfg.OTel.Addr)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer func() {
			c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracer(c); err != nil {
				logger.Error(ctx, "shutdown tracer error", zap.Error(err))
			}
		}()
	}

	db, err := newGorm(cfg.Db)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	if cfg.Db.AutoMigrate {
		if err := mysql.Migrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	observeDBStats(ctx, sqlDB)

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = xredis.NewRedis(ctx, &xredis.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Auth,
			DB:           cfg.Redis.Database,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		observeRedisStats(ctx, rdb)
	}

	static, err := price.NewStatic(cfg.Prices.Static)
	if err != nil {
		return fmt.Errorf("static prices: %w", err)
	}
	oracle := price.Chain{static}
	var publisher ledgerhttp.PricePublisher = static
	if rdb != nil {
		b := cfg.Prices.Breaker
		breakers := ratelimit.NewManager(ratelimit.Rule{
			MaxRequests:             b.MaxRequests,
			Interval:                b.Interval,
			Timeout:                 b.Timeout,
			TripConsecutiveFailures: b.TripConsecutiveFailures,
			TripFailureRate:         b.TripFailureRate,
			TripMinRequests:         b.TripMinRequests,
		}, nil)
		feed := price.NewRedis(rdb, breakers, cfg.Prices.RedisTTL)
		oracle = price.Chain{feed, static}
		publisher = feed
	}

	hot := newHotConfig(cfg, static)
	registry := hot.registry
	if err := registry.Reload(ctx); err != nil {
		return fmt.Errorf("load assets: %w", err)
	}
	registry.StartAutoRefresh(ctx, cfg.Ledger.AssetRefresh)
	hot.run(ctx, updates)

	var cache service.HoldingsCache = service.NopCache{}
	if rdb != nil {
		cache = service.NewRedisCache(rdb, cfg.Ledger.SecondDeleteDelay)
	}

	repo := mysql.New(db)
	opts := []service.Option{
		service.WithLockDuration(cfg.Ledger.LockDuration),
		service.WithCache(cache),
	}
	h := &ledgerhttp.Handler{
		Grants:     service.NewGrantService(repo, cfg.Ledger.BaseGrantSats, opts...),
		Settlement: service.NewSettlementService(repo, registry, oracle, opts...),
		Holdings:   service.NewHoldingsService(repo, repo, cfg.Ledger.HoldingsCacheTTL, opts...),
		Lots:       service.NewLotService(repo, repo, opts...),
		Portfolio:  service.NewPortfolioService(repo, repo, oracle),
		History:    service.NewHistoryService(repo),
		Audit:      service.NewAuditService(repo),
		Catalog:    registry,
		Prices:     publisher,
	}

	limiter := ratelimit.NewStore(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst, cfg.RateLimit.IdleTTL)
	limiter.StartJanitor(ctx, time.Minute)

	router := ledgerhttp.NewRouter(h, limiter, ledgerhttp.RouterConfig{
		ServiceName: cfg.Name,
		AdminToken:  cfg.HTTP.AdminToken,
		MetricsPath: cfg.HTTP.MetricsPath,
	})
	srv := ledgerhttp.NewServer(cfg.HTTP.Addr, router)
	return serve(ctx, srv)
}

func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "http listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info(context.Background(), "service stopped")
	return nil
}

func newGorm(c ledger.DBConfig) (*gorm.DB, error) {
	switch c.Type {
	case "sqlite":
		return openSQLite(c)
	case "", "mysql":
		return openMySQL(c)
	default:
		return nil, fmt.Errorf("unsupported db type %q", c.Type)
	}
}
