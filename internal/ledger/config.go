package ledger

import (
	"time"

	"satstack.com/internal/ledger/domain"
)

type Cfg struct {
	Name  string   `yaml:"name" mapstructure:"name"`
	HTTP  HTTP     `yaml:"http" mapstructure:"http"`
	Log   Log      `yaml:"log" mapstructure:"log"`
	Db    DBConfig `yaml:"db" mapstructure:"db"`
	Redis Redis    `yaml:"redis" mapstructure:"redis"`
	OTel  OTel     `yaml:"otel" mapstructure:"otel"`

	Ledger    Ledger         `yaml:"ledger" mapstructure:"ledger"`
	Prices    Prices         `yaml:"prices" mapstructure:"prices"`
	Assets    []domain.Asset `yaml:"assets" mapstructure:"assets"`
	RateLimit RateLimit      `yaml:"rate_limit" mapstructure:"rate_limit"`
}

type HTTP struct {
	Addr        string `yaml:"addr" mapstructure:"addr"`
	AdminToken  string `yaml:"admin_token" mapstructure:"admin_token"`
	MetricsPath string `yaml:"metrics_path" mapstructure:"metrics_path"`
}

type Log struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file" mapstructure:"file"`
}

type DBConfig struct {
	// mysql, or sqlite for a local single-process setup
	Type                   string `yaml:"type" mapstructure:"type"`
	SourceName             string `yaml:"source_name" mapstructure:"source_name"`
	MaxOpenConns           int    `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" mapstructure:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level" mapstructure:"log_level"`
	AutoMigrate            bool   `yaml:"auto_migrate" mapstructure:"auto_migrate"`
}

type Redis struct {
	Enabled      bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr         string `yaml:"addr" mapstructure:"addr"`
	Database     int    `yaml:"db" mapstructure:"db"`
	Auth         string `yaml:"auth" mapstructure:"auth"`
	PoolSize     int    `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int    `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
}

type OTel struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
}

type Ledger struct {
	LockDuration      time.Duration `yaml:"lock_duration" mapstructure:"lock_duration"`
	BaseGrantSats     int64         `yaml:"base_grant_sats" mapstructure:"base_grant_sats"`
	HoldingsCacheTTL  time.Duration `yaml:"holdings_cache_ttl" mapstructure:"holdings_cache_ttl"`
	SecondDeleteDelay time.Duration `yaml:"second_delete_delay" mapstructure:"second_delete_delay"`
	AssetRefresh      time.Duration `yaml:"asset_refresh" mapstructure:"asset_refresh"`
}

type Prices struct {
	// USD per whole unit, keyed by symbol
	Static   map[string]string `yaml:"static" mapstructure:"static"`
	RedisTTL time.Duration     `yaml:"redis_ttl" mapstructure:"redis_ttl"`
	Breaker  Breaker           `yaml:"breaker" mapstructure:"breaker"`
}

type Breaker struct {
	MaxRequests             uint32        `yaml:"max_requests" mapstructure:"max_requests"`
	Interval                time.Duration `yaml:"interval" mapstructure:"interval"`
	Timeout                 time.Duration `yaml:"timeout" mapstructure:"timeout"`
	TripConsecutiveFailures uint32        `yaml:"trip_consecutive_failures" mapstructure:"trip_consecutive_failures"`
	TripFailureRate         float64       `yaml:"trip_failure_rate" mapstructure:"trip_failure_rate"`
	TripMinRequests         uint32        `yaml:"trip_min_requests" mapstructure:"trip_min_requests"`
}

type RateLimit struct {
	RPS     float64       `yaml:"rps" mapstructure:"rps"`
	Burst   int           `yaml:"burst" mapstructure:"burst"`
	IdleTTL time.Duration `yaml:"idle_ttl" mapstructure:"idle_ttl"`
}
