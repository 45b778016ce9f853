package cache

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/subtrack/backend/internal/infrastructure/telemetry"
)

const rateKeyPrefix = "subtrack:rate:"

// RateCache stores mid rates keyed by an opaque string, e.g. "nbp:USD".
type RateCache interface {
	Get(ctx context.Context, key string) (decimal.Decimal, bool)
	Set(ctx context.Context, key string, rate decimal.Decimal)
}

// TieredRateCache implements a two-tier read-through cache.
// L1 is a size-bounded in-process LRU whose entries expire after ttl.
// L2 is an optional Redis store shared across instances.
// Redis failures are logged and treated as misses.
type TieredRateCache struct {
	l1     *expirable.LRU[string, decimal.Decimal]
	l2     redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger

	lookups *telemetry.Counter
}

// RateCacheOption customizes a TieredRateCache
type RateCacheOption func(*TieredRateCache) error

// WithMeter records subtrack_rate_cache_lookups_total{cache.tier, cache.result}
// on meter.
func WithMeter(meter metric.Meter) RateCacheOption {
	return func(c *TieredRateCache) error {
		counter, err := telemetry.NewCounter(meter,
			"subtrack_rate_cache_lookups_total",
			"Exchange rate cache lookups by tier and result",
			"{lookup}",
		)
		if err != nil {
			return err
		}
		c.lookups = counter
		return nil
	}
}

// NewTieredRateCache creates the cache. l2 may be nil to run with L1 only.
func NewTieredRateCache(size int, ttl time.Duration, l2 redis.UniversalClient, logger *zap.Logger, opts ...RateCacheOption) (*TieredRateCache, error) {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &TieredRateCache{
		l1:     expirable.NewLRU[string, decimal.Decimal](size, nil, ttl),
		l2:     l2,
		ttl:    ttl,
		logger: logger.Named("rate_cache"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Get returns a cached rate, promoting L2 hits into L1
func (c *TieredRateCache) Get(ctx context.Context, key string) (decimal.Decimal, bool) {
	if rate, ok := c.l1.Get(key); ok {
		c.record(ctx, "l1", "hit")
		return rate, true
	}
	c.record(ctx, "l1", "miss")

	if c.l2 == nil {
		return decimal.Decimal{}, false
	}

	raw, err := c.l2.Get(ctx, rateKeyPrefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("L2 rate cache read failed", zap.String("key", key), zap.Error(err))
		}
		c.record(ctx, "l2", "miss")
		return decimal.Decimal{}, false
	}

	rate, err := decimal.NewFromString(raw)
	if err != nil {
		c.logger.Warn("L2 rate cache holds an unparsable value", zap.String("key", key), zap.String("value", raw))
		c.record(ctx, "l2", "miss")
		return decimal.Decimal{}, false
	}

	c.record(ctx, "l2", "hit")
	c.l1.Add(key, rate)
	return rate, true
}

// Set stores the rate in both tiers
func (c *TieredRateCache) Set(ctx context.Context, key string, rate decimal.Decimal) {
	c.l1.Add(key, rate)
	if c.l2 == nil {
		return
	}
	if err := c.l2.Set(ctx, rateKeyPrefix+key, rate.String(), c.ttl).Err(); err != nil {
		c.logger.Warn("L2 rate cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *TieredRateCache) record(ctx context.Context, tier, result string) {
	if c.lookups == nil {
		return
	}
	c.lookups.Inc(ctx, telemetry.AttrCacheTier.String(tier), telemetry.AttrCacheResult.String(result))
}

var _ RateCache = (*TieredRateCache)(nil)
