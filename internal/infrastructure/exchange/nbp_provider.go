package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/subtrack/backend/internal/domain/exchange"
	"github.com/subtrack/backend/internal/domain/shared/valueobject"
	"github.com/subtrack/backend/internal/infrastructure/cache"
	"github.com/subtrack/backend/internal/infrastructure/config"
	"github.com/subtrack/backend/internal/infrastructure/telemetry"
)

const (
	nbpCacheKeyPrefix   = "nbp:"
	defaultFetchTimeout = 10 * time.Second
)

type options struct {
	meter metric.Meter
}

// Option customizes the exchange rate adapters
type Option func(*options)

// WithMeter records NBP fetch results and the breaker state on meter
func WithMeter(meter metric.Meter) Option {
	return func(o *options) { o.meter = meter }
}

// NBPProvider answers rates for pairs that include PLN using NBP mid rates.
// Other pairs are absent; wrap it in a PivotProvider to get cross rates.
type NBPProvider struct {
	source  MidRateSource
	cache   cache.RateCache
	breaker *gobreaker.CircuitBreaker[decimal.Decimal]
	group   singleflight.Group
	timeout time.Duration
	fetches *telemetry.Counter
	logger  *zap.Logger
}

// NewNBPProvider creates an NBPProvider on top of source and rateCache
func NewNBPProvider(source MidRateSource, rateCache cache.RateCache, cfg config.ExchangeConfig, logger *zap.Logger, opts ...Option) (*NBPProvider, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("nbp")

	threshold := cfg.BreakerFailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	breaker := gobreaker.NewCircuitBreaker[decimal.Decimal](gobreaker.Settings{
		Name:        "nbp",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// An unpublished currency is a valid answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrRateNotPublished)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	p := &NBPProvider{
		source:  source,
		cache:   rateCache,
		breaker: breaker,
		timeout: timeout,
		logger:  logger,
	}
	if o.meter != nil {
		if err := p.registerMetrics(o.meter); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// registerMetrics creates subtrack_nbp_fetch_total{result} and the
// subtrack_nbp_breaker_state gauge (0 closed, 1 half-open, 2 open).
func (p *NBPProvider) registerMetrics(meter metric.Meter) error {
	fetches, err := telemetry.NewCounter(meter,
		"subtrack_nbp_fetch_total",
		"NBP mid rate fetches by result",
		"{fetch}",
	)
	if err != nil {
		return err
	}
	p.fetches = fetches

	_, err = meter.Int64ObservableGauge("subtrack_nbp_breaker_state",
		metric.WithDescription("NBP circuit breaker state: 0 closed, 1 half-open, 2 open"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(p.BreakerState()))
			return nil
		}),
	)
	return err
}

// Rate implements exchange.RateProvider
func (p *NBPProvider) Rate(ctx context.Context, from, to valueobject.Currency) (decimal.Decimal, bool) {
	if from == to {
		return decimal.NewFromInt(1), true
	}
	switch {
	case from == valueobject.PLN:
		mid, ok := p.mid(ctx, to)
		if !ok {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromInt(1).Div(mid), true
	case to == valueobject.PLN:
		return p.mid(ctx, from)
	default:
		return decimal.Decimal{}, false
	}
}

// mid returns PLN per one unit of code
func (p *NBPProvider) mid(ctx context.Context, code valueobject.Currency) (decimal.Decimal, bool) {
	if code == valueobject.PLN {
		return decimal.NewFromInt(1), true
	}

	key := nbpCacheKeyPrefix + code.String()
	if rate, ok := p.cache.Get(ctx, key); ok {
		return rate, true
	}

	if ctx.Err() != nil {
		return decimal.Decimal{}, false
	}

	// The fetch is shared by every waiter on key, so it runs detached from
	// the caller that happened to start it and fills the cache itself.
	results := p.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		rate, err := p.breaker.Execute(func() (decimal.Decimal, error) {
			return p.source.MidRate(fetchCtx, code)
		})
		p.recordFetch(fetchCtx, err)
		if err == nil {
			p.cache.Set(fetchCtx, key, rate)
		}
		return rate, err
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return decimal.Decimal{}, false
	case res = <-results:
	}

	if res.Err != nil {
		p.logger.Warn("Exchange rate lookup failed",
			zap.String("currency", code.String()),
			zap.Bool("shared", res.Shared),
			zap.String("breaker_state", p.breaker.State().String()),
			zap.Error(res.Err),
		)
		return decimal.Decimal{}, false
	}

	return res.Val.(decimal.Decimal), true
}

func (p *NBPProvider) recordFetch(ctx context.Context, err error) {
	if p.fetches == nil {
		return
	}
	result := "ok"
	switch {
	case errors.Is(err, ErrRateNotPublished):
		result = "not_published"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		result = "rejected"
	case err != nil:
		result = "error"
	}
	p.fetches.Inc(ctx, telemetry.AttrResult.String(result))
}

// BreakerState reports the current circuit breaker state
func (p *NBPProvider) BreakerState() gobreaker.State {
	return p.breaker.State()
}

var _ exchange.RateProvider = (*NBPProvider)(nil)
