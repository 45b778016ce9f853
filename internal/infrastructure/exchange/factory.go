package exchange

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/subtrack/backend/internal/domain/exchange"
	"github.com/subtrack/backend/internal/domain/shared/valueobject"
	"github.com/subtrack/backend/internal/infrastructure/cache"
	"github.com/subtrack/backend/internal/infrastructure/config"
)

// NewRateProvider builds the configured rate provider. Both variants are
// wrapped in a PivotProvider so any pair can be priced through a pivot.
// rdb may be nil, in which case NBP rates are cached in process only.
func NewRateProvider(cfg *config.Config, rdb redis.UniversalClient, logger *zap.Logger, opts ...Option) (exchange.RateProvider, error) {
	switch cfg.Exchange.Provider {
	case config.ExchangeProviderStatic:
		base, err := valueobject.ParseCurrency(cfg.Billing.BaseCurrency)
		if err != nil {
			return nil, fmt.Errorf("billing.base_currency: %w", err)
		}
		static, err := exchange.ParseStaticRates(cfg.Exchange.StaticRates)
		if err != nil {
			return nil, fmt.Errorf("exchange.static_rates: %w", err)
		}
		logger.Info("Using static exchange rates",
			zap.Int("pairs", len(cfg.Exchange.StaticRates)),
			zap.String("pivot", base.String()),
		)
		return exchange.NewPivotProvider(static, base), nil

	case config.ExchangeProviderNBP, "":
		var o options
		for _, opt := range opts {
			opt(&o)
		}
		var cacheOpts []cache.RateCacheOption
		if o.meter != nil {
			cacheOpts = append(cacheOpts, cache.WithMeter(o.meter))
		}
		rateCache, err := cache.NewTieredRateCache(cfg.Exchange.CacheSize, cfg.Exchange.CacheTTL, rdb, logger, cacheOpts...)
		if err != nil {
			return nil, fmt.Errorf("rate cache: %w", err)
		}

		client := NewNBPClient(cfg.Exchange.NBPBaseURL, cfg.Exchange.Timeout)
		nbp, err := NewNBPProvider(client, rateCache, cfg.Exchange, logger, opts...)
		if err != nil {
			return nil, fmt.Errorf("nbp provider: %w", err)
		}
		logger.Info("Using NBP exchange rates",
			zap.String("base_url", cfg.Exchange.NBPBaseURL),
			zap.Bool("redis_cache", rdb != nil),
		)
		return exchange.NewPivotProvider(nbp, valueobject.PLN), nil

	default:
		return nil, fmt.Errorf("unknown exchange provider %q", cfg.Exchange.Provider)
	}
}
