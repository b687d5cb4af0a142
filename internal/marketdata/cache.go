package marketdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/pkg/logger"
	"github.com/wonny/rebalancer/pkg/redis"
)

// CachedSource serves series from Redis and falls back to the wrapped source.
// Cache failures are logged and never fail the request.
type CachedSource struct {
	source Source
	cache  *redis.Cache
	ttl    time.Duration
	logger *logger.Logger
}

// NewCachedSource wraps source with a daily-TTL cache
func NewCachedSource(source Source, cache *redis.Cache, log *logger.Logger) *CachedSource {
	return &CachedSource{
		source: source,
		cache:  cache,
		ttl:    redis.TTLDaily,
		logger: log.Module("marketdata_cache"),
	}
}

// Series implements Source
func (c *CachedSource) Series(ctx context.Context, ticker string, from, to time.Time) (contracts.PriceSeries, error) {
	key := redis.SeriesKey(ticker, from, to)

	var cached contracts.PriceSeries
	found, err := c.cache.Get(ctx, key, &cached)
	if err != nil {
		c.logger.WithError(err).WithField("ticker", ticker).Warn("Series cache read failed")
	}
	if found {
		return cached, nil
	}

	series, err := c.source.Series(ctx, ticker, from, to)
	if err != nil {
		return contracts.PriceSeries{}, err
	}

	if err := c.cache.Set(ctx, key, series, c.ttl); err != nil {
		c.logger.WithError(err).WithField("ticker", ticker).Warn("Series cache write failed")
	}
	return series, nil
}

// CachedQuoter caches latest prices for a short TTL
type CachedQuoter struct {
	quoter Quoter
	cache  *redis.Cache
	logger *logger.Logger
}

// NewCachedQuoter wraps quoter with a one-minute cache
func NewCachedQuoter(quoter Quoter, cache *redis.Cache, log *logger.Logger) *CachedQuoter {
	return &CachedQuoter{
		quoter: quoter,
		cache:  cache,
		logger: log.Module("quote_cache"),
	}
}

// LatestPrice implements Quoter
func (c *CachedQuoter) LatestPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	key := redis.QuoteKey(ticker)

	var cached decimal.Decimal
	found, err := c.cache.Get(ctx, key, &cached)
	if err != nil {
		c.logger.WithError(err).WithField("ticker", ticker).Warn("Quote cache read failed")
	}
	if found {
		return cached, nil
	}

	price, err := c.quoter.LatestPrice(ctx, ticker)
	if err != nil {
		return decimal.Zero, err
	}

	if err := c.cache.Set(ctx, key, price, redis.TTLQuote); err != nil {
		c.logger.WithError(err).WithField("ticker", ticker).Warn("Quote cache write failed")
	}
	return price, nil
}
