package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/rebalancer/internal/marketdata"
	"github.com/wonny/rebalancer/pkg/logger"
)

// Syncer copies recent bars into the local store
type Syncer interface {
	Sync(ctx context.Context, tickers []string, from, to time.Time) ([]marketdata.SyncResult, error)
}

// DefaultLookbackDays is how far back each daily sync reaches
const DefaultLookbackDays = 7

// PriceSyncJob refreshes stored daily bars for the tracked tickers
type PriceSyncJob struct {
	syncer   Syncer
	tickers  []string
	lookback int
	now      func() time.Time
	logger   *logger.Logger
}

// NewPriceSyncJob creates a new price sync job
func NewPriceSyncJob(syncer Syncer, tickers []string, lookbackDays int, log *logger.Logger) *PriceSyncJob {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	return &PriceSyncJob{
		syncer:   syncer,
		tickers:  tickers,
		lookback: lookbackDays,
		now:      time.Now,
		logger:   log.Module("price_sync_job"),
	}
}

// Name returns the job name
func (j *PriceSyncJob) Name() string {
	return "price_sync"
}

// Schedule returns the cron schedule (weekdays after the US close, UTC)
func (j *PriceSyncJob) Schedule() string {
	return "0 30 22 * * MON-FRI"
}

// Run syncs the lookback window and fails if any ticker failed
func (j *PriceSyncJob) Run(ctx context.Context) error {
	to := j.now().UTC()
	from := to.AddDate(0, 0, -j.lookback)

	results, err := j.syncer.Sync(ctx, j.tickers, from, to)
	if err != nil {
		return fmt.Errorf("sync prices: %w", err)
	}

	failed := make([]string, 0)
	for _, r := range results {
		if r.Error != nil {
			failed = append(failed, r.Ticker)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("sync failed for %d tickers: %v", len(failed), failed)
	}

	return nil
}
