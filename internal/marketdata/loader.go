package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/pkg/logger"
)

// Loader fetches many tickers concurrently and hands back a complete snapshot
type Loader struct {
	source  Source
	workers int
	logger  *logger.Logger
}

type seriesResult struct {
	ticker string
	series contracts.PriceSeries
	err    error
}

// NewLoader creates a new loader
func NewLoader(source Source, workers int, log *logger.Logger) *Loader {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Loader{
		source:  source,
		workers: workers,
		logger:  log.Module("loader"),
	}
}

// LoadAll returns a series for every ticker, or the first error. The map is
// only returned once every fetch has finished successfully; on error the
// remaining fetches are canceled and nothing is returned.
func (l *Loader) LoadAll(ctx context.Context, tickers []string, from, to time.Time) (map[string]contracts.PriceSeries, error) {
	tickers = uniqueTickers(tickers)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tickerCh := make(chan string, len(tickers))
	resultCh := make(chan seriesResult, len(tickers))

	var wg sync.WaitGroup
	for i := 0; i < l.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ticker := range tickerCh {
				if err := ctx.Err(); err != nil {
					resultCh <- seriesResult{ticker: ticker, err: err}
					continue
				}
				series, err := l.source.Series(ctx, ticker, from, to)
				resultCh <- seriesResult{ticker: ticker, series: series, err: err}
			}
		}()
	}

	for _, t := range tickers {
		tickerCh <- t
	}
	close(tickerCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	out := make(map[string]contracts.PriceSeries, len(tickers))
	var firstErr error
	for r := range resultCh {
		if r.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("load %s: %w", r.ticker, r.err)
				cancel()
			}
			continue
		}
		out[r.ticker] = r.series
	}

	if firstErr != nil {
		return nil, firstErr
	}

	l.logger.WithFields(map[string]interface{}{
		"tickers": len(out),
		"from":    from.Format(contracts.DateLayout),
		"to":      to.Format(contracts.DateLayout),
	}).Info("Price history loaded")

	return out, nil
}

type quoteResult struct {
	ticker string
	price  decimal.Decimal
	err    error
}

// QuoteSnapshot fetches the latest price of every ticker concurrently. Like
// LoadAll it returns all prices or an error, never a partial map.
func QuoteSnapshot(ctx context.Context, quoter Quoter, tickers []string, workers int) (map[string]decimal.Decimal, error) {
	tickers = uniqueTickers(tickers)
	if workers <= 0 {
		workers = DefaultWorkers
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tickerCh := make(chan string, len(tickers))
	resultCh := make(chan quoteResult, len(tickers))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ticker := range tickerCh {
				if err := ctx.Err(); err != nil {
					resultCh <- quoteResult{ticker: ticker, err: err}
					continue
				}
				price, err := quoter.LatestPrice(ctx, ticker)
				if err == nil && !price.IsPositive() {
					err = &contracts.MissingPriceError{Ticker: ticker}
				}
				resultCh <- quoteResult{ticker: ticker, price: price, err: err}
			}
		}()
	}

	for _, t := range tickers {
		tickerCh <- t
	}
	close(tickerCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	prices := make(map[string]decimal.Decimal, len(tickers))
	var firstErr error
	for r := range resultCh {
		if r.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("quote %s: %w", r.ticker, r.err)
				cancel()
			}
			continue
		}
		prices[r.ticker] = r.price
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return prices, nil
}
