package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"satstack.com/pkg/logger"
	"satstack.com/pkg/safe"
)

// HoldingsCache stores the computed holdings view of a user.
type HoldingsCache interface {
	Get(ctx context.Context, userID int64) ([]Availability, bool, error)
	Set(ctx context.Context, userID int64, v []Availability, ttl time.Duration) error
	// Invalidate drops the entry after a committed write.
	Invalidate(ctx context.Context, userID int64)
}

// NopCache never hits.
type NopCache struct{}

func (NopCache) Get(context.Context, int64) ([]Availability, bool, error) { return nil, false, nil }

func (NopCache) Set(context.Context, int64, []Availability, time.Duration) error { return nil }

func (NopCache) Invalidate(context.Context, int64) {}

type RedisCache struct {
	client      *redis.Client
	secondDelay time.Duration
}

// NewRedisCache returns a cache whose Invalidate deletes twice: right away
// and again after secondDelay, clearing values written back by reads that
// raced the commit.
func NewRedisCache(client *redis.Client, secondDelay time.Duration) *RedisCache {
	if secondDelay <= 0 {
		secondDelay = 500 * time.Millisecond
	}
	return &RedisCache{client: client, secondDelay: secondDelay}
}

func holdingsKey(userID int64) string {
	return fmt.Sprintf("ledger:holdings:%d", userID)
}

func (c *RedisCache) Get(ctx context.Context, userID int64) ([]Availability, bool, error) {
	key := holdingsKey(userID)
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var v []Availability
	if err := json.Unmarshal(b, &v); err != nil {
		// drop the corrupt entry so the next read goes to the database
		_ = c.client.Del(ctx, key).Err()
		return nil, false, err
	}
	return v, true, nil
}

// Set stores v for exactly ttl.
func (c *RedisCache) Set(ctx context.Context, userID int64, v []Availability, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, holdingsKey(userID), b, ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, userID int64) {
	key := holdingsKey(userID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		logger.Warn(ctx, "holdings cache delete failed", zap.String("key", key), zap.Error(err))
	}
	time.AfterFunc(c.secondDelay, func() {
		safe.Go(func() {
			_ = c.client.Del(context.Background(), key).Err()
		})
	})
}
