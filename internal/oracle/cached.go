package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const redisKeyPrefix = "oracle:price"

// CachedOracle caches quotes from an upstream oracle in redis. Cache failures
// degrade to the upstream, never to an error.
type CachedOracle struct {
	inner PriceOracle
	redis redis.Cmdable
	ttl   time.Duration
}

func NewCachedOracle(inner PriceOracle, redis redis.Cmdable, ttl time.Duration) *CachedOracle {
	return &CachedOracle{inner: inner, redis: redis, ttl: ttl}
}

func (o *CachedOracle) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if o.redis != nil {
		val, err := o.redis.Get(ctx, redisKey(symbol)).Result()
		if err == nil {
			price, parseErr := decimal.NewFromString(val)
			if parseErr == nil {
				return price, nil
			}
			zap.L().Warn("cached price unparseable, refetching", zap.String("symbol", symbol), zap.Error(parseErr))
		} else if err != redis.Nil {
			zap.L().Warn("redis price lookup failed", zap.Error(err))
		}
	}

	price, err := o.inner.Price(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}

	if o.redis != nil {
		if err := o.redis.Set(ctx, redisKey(symbol), price.String(), o.ttl).Err(); err != nil {
			zap.L().Warn("redis price cache set failed", zap.Error(err))
		}
	}
	return price, nil
}

// Invalidate drops the cached quote for a single symbol. Called when an admin
// overrides that symbol's price; other symbols keep their cached quotes.
func (o *CachedOracle) Invalidate(ctx context.Context, symbol string) {
	if o.redis == nil {
		return
	}
	if err := o.redis.Del(ctx, redisKey(symbol)).Err(); err != nil {
		zap.L().Warn("redis price invalidate failed", zap.String("symbol", symbol), zap.Error(err))
	}
}

func redisKey(symbol string) string {
	return fmt.Sprintf("%s:%s", redisKeyPrefix, symbol)
}
