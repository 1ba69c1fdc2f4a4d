package price

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"satstack.com/internal/ledger/domain"
	"satstack.com/pkg/metrics"
	"satstack.com/pkg/ratelimit"
	"satstack.com/pkg/xerr"
)

// BreakerResource names the circuit breaker guarding redis price reads.
const BreakerResource = "price.redis"

// Redis reads prices that an external feeder writes to price:usd:<SYMBOL>.
type Redis struct {
	client   *redis.Client
	breakers *ratelimit.Manager
	ttl      time.Duration
	sf       singleflight.Group
}

// NewRedis builds the oracle. ttl bounds how long a published price stays
// valid; 0 keeps it until overwritten.
func NewRedis(client *redis.Client, breakers *ratelimit.Manager, ttl time.Duration) *Redis {
	return &Redis{client: client, breakers: breakers, ttl: ttl}
}

func Key(symbol string) string {
	return "price:usd:" + domain.NormalizeSymbol(symbol)
}

// Price reads the published price. A missing or malformed value is a miss
// and leaves the breaker alone: it says nothing about redis' health.
func (r *Redis) Price(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	key := Key(symbol)
	v, err, _ := r.sf.Do(key, func() (any, error) {
		return r.breakers.Execute(BreakerResource, func() (any, error) {
			raw, err := r.client.Get(ctx, key).Result()
			if errors.Is(err, redis.Nil) {
				return nil, xerr.NewErrCode(xerr.RecordNotFound)
			}
			if err != nil {
				return nil, xerr.Wrap(err, xerr.CacheError, xerr.MapErrMsg(xerr.CacheError))
			}
			p, err := ParsePrice(raw)
			if err != nil {
				return nil, xerr.Wrap(err, xerr.RecordNotFound, "malformed price "+raw)
			}
			return p, nil
		})
	})
	switch xerr.CodeOf(err) {
	case xerr.OK:
		metrics.PriceLookupTotal.WithLabelValues("redis", "hit").Inc()
		return v.(decimal.Decimal), true, nil
	case xerr.RecordNotFound:
		metrics.PriceLookupTotal.WithLabelValues("redis", "miss").Inc()
		return decimal.Zero, false, nil
	default:
		metrics.PriceLookupTotal.WithLabelValues("redis", "error").Inc()
		return decimal.Zero, false, fmt.Errorf("redis price %s: %w", symbol, err)
	}
}

func (r *Redis) Publish(ctx context.Context, symbol string, p decimal.Decimal) error {
	if !p.IsPositive() {
		return fmt.Errorf("price of %s must be positive", symbol)
	}
	return r.client.Set(ctx, Key(symbol), p.String(), r.ttl).Err()
}
