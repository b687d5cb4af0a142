package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/pkg/logger"
)

// LatestDater reports the newest stored bar for a ticker
type LatestDater interface {
	LatestDate(ctx context.Context, ticker string) (time.Time, bool, error)
}

// Collector copies price history from a remote source into the local store
type Collector struct {
	source  Source
	store   SeriesStore
	workers int
	logger  *logger.Logger
}

// SyncResult represents the outcome for one ticker
type SyncResult struct {
	Ticker   string
	From     time.Time
	BarCount int
	Error    error
}

// NewCollector creates a new Collector instance
func NewCollector(source Source, store SeriesStore, workers int, log *logger.Logger) *Collector {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Collector{
		source:  source,
		store:   store,
		workers: workers,
		logger:  log.Module("collector"),
	}
}

// Sync fetches and stores bars for every ticker. A failing ticker is
// reported in its result and does not stop the others. When the store knows
// its latest bar for a ticker, only newer bars are fetched.
func (c *Collector) Sync(ctx context.Context, tickers []string, from, to time.Time) ([]SyncResult, error) {
	tickers = uniqueTickers(tickers)
	if to.Before(from) {
		return nil, fmt.Errorf("sync window ends before it starts: %s < %s",
			to.Format(contracts.DateLayout), from.Format(contracts.DateLayout))
	}

	c.logger.WithFields(map[string]interface{}{
		"tickers": len(tickers),
		"from":    from.Format(contracts.DateLayout),
		"to":      to.Format(contracts.DateLayout),
		"workers": c.workers,
	}).Info("Starting price sync")

	results := make([]SyncResult, 0, len(tickers))
	resultCh := make(chan SyncResult, len(tickers))

	var wg sync.WaitGroup
	tickerCh := make(chan string, len(tickers))

	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.syncWorker(ctx, workerID, tickerCh, resultCh, from, to)
		}(i)
	}

	for _, t := range tickers {
		tickerCh <- t
	}
	close(tickerCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	successCount := 0
	failCount := 0
	for result := range resultCh {
		results = append(results, result)
		if result.Error != nil {
			failCount++
		} else {
			successCount++
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"success": successCount,
		"failed":  failCount,
		"total":   len(results),
	}).Info("Price sync completed")

	return results, nil
}

func (c *Collector) syncWorker(ctx context.Context, workerID int, tickerCh <-chan string, resultCh chan<- SyncResult, from, to time.Time) {
	for ticker := range tickerCh {
		select {
		case <-ctx.Done():
			resultCh <- SyncResult{Ticker: ticker, From: from, Error: ctx.Err()}
			continue
		default:
		}

		start := c.resumeFrom(ctx, ticker, from)
		if start.After(to) {
			resultCh <- SyncResult{Ticker: ticker, From: start}
			continue
		}

		series, err := c.source.Series(ctx, ticker, start, to)
		if err != nil {
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"worker": workerID,
				"ticker": ticker,
			}).Error("Failed to fetch bars")
			resultCh <- SyncResult{Ticker: ticker, From: start, Error: err}
			continue
		}

		if err := c.store.SaveSeries(ctx, series); err != nil {
			c.logger.WithError(err).WithFields(map[string]interface{}{
				"worker": workerID,
				"ticker": ticker,
			}).Error("Failed to save bars")
			resultCh <- SyncResult{Ticker: ticker, From: start, BarCount: len(series.Bars), Error: err}
			continue
		}

		c.logger.WithFields(map[string]interface{}{
			"worker": workerID,
			"ticker": ticker,
			"count":  len(series.Bars),
		}).Debug("Synced bars")

		resultCh <- SyncResult{Ticker: ticker, From: start, BarCount: len(series.Bars)}
	}
}

// resumeFrom returns the day after the latest stored bar, or from
func (c *Collector) resumeFrom(ctx context.Context, ticker string, from time.Time) time.Time {
	ld, ok := c.store.(LatestDater)
	if !ok {
		return from
	}
	latest, found, err := ld.LatestDate(ctx, ticker)
	if err != nil {
		c.logger.WithError(err).WithField("ticker", ticker).Warn("Latest date lookup failed, syncing full window")
		return from
	}
	if !found || latest.Before(from) {
		return from
	}
	return latest.AddDate(0, 0, 1)
}
