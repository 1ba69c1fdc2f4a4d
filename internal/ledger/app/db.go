package app

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"satstack.com/internal/ledger"
	"satstack.com/pkg/metrics"
	"satstack.com/pkg/orm"
	"satstack.com/pkg/safe"
)

func openMySQL(c ledger.DBConfig) (*gorm.DB, error) {
	return orm.NewMySQL(&orm.Config{
		DSN:         c.SourceName,
		MaxIdle:     c.MaxIdleConns,
		MaxOpen:     c.MaxOpenConns,
		MaxLifetime: c.ConnMaxLifetimeMinutes * 60,
		LogLevel:    c.LogLevel,
	})
}

// openSQLite serves local single-process runs. SQLite has no row locks, so
// one connection serializes every transaction.
func openSQLite(c ledger.DBConfig) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(c.SourceName), orm.GormConfig(c.LogLevel))
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func observeDBStats(ctx context.Context, db *sql.DB) {
	safe.GoCtx(ctx, func(ctx context.Context) {
		t := time.NewTicker(5 * time.Second)
		defer t.Stop()
		var lastWait int64
		var lastWaitDur time.Duration
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			st := db.Stats()
			metrics.DbPoolOpen.Set(float64(st.OpenConnections))
			metrics.DbPoolIdle.Set(float64(st.Idle))
			metrics.DbPoolInuse.Set(float64(st.InUse))
			metrics.DbPoolWaitCount.Add(float64(st.WaitCount - lastWait))
			metrics.DbPoolWaitDuration.Add((st.WaitDuration - lastWaitDur).Seconds())
			lastWait, lastWaitDur = st.WaitCount, st.WaitDuration
		}
	})
}

func observeRedisStats(ctx context.Context, rdb *redis.Client) {
	safe.GoCtx(ctx, func(ctx context.Context) {
		t := time.NewTicker(5 * time.Second)
		defer t.Stop()
		var lastTimeouts uint32
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			st := rdb.PoolStats()
			metrics.RedisPoolOpen.Set(float64(st.TotalConns))
			metrics.RedisPoolIdle.Set(float64(st.IdleConns))
			metrics.RedisPoolStale.Set(float64(st.StaleConns))
			metrics.RedisPoolTimeouts.Add(float64(st.Timeouts - lastTimeouts))
			lastTimeouts = st.Timeouts
		}
	})
}
