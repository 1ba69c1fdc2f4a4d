package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DbPoolOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_db_pool_open",
		Help: "Current open DB connections",
	})
	DbPoolIdle         = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_db_pool_idle"})
	DbPoolInuse        = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_db_pool_inuse"})
	DbPoolWaitCount    = promauto.NewCounter(prometheus.CounterOpts{Name: "app_db_pool_wait_count"})
	DbPoolWaitDuration = promauto.NewCounter(prometheus.CounterOpts{Name: "app_db_pool_wait_seconds"})

	RedisPoolOpen     = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_redis_pool_open"})
	RedisPoolIdle     = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_redis_pool_idle"})
	RedisPoolStale    = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_redis_pool_stale"})
	RedisPoolTimeouts = promauto.NewCounter(prometheus.CounterOpts{Name: "app_redis_pool_timeouts"})
)
