package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/pkg/logger"
)

// HistoryLookbackDays widens the loaded window so the start date has an
// as-of price across weekends and holidays
const HistoryLookbackDays = 10

// SeriesLoader loads complete price history for many tickers
type SeriesLoader interface {
	LoadAll(ctx context.Context, tickers []string, from, to time.Time) (map[string]contracts.PriceSeries, error)
}

// Runner loads the history a backtest needs and runs it
type Runner struct {
	loader SeriesLoader
	engine *Engine
	logger *logger.Logger
}

// NewRunner creates a new backtest runner
func NewRunner(loader SeriesLoader, engine *Engine, log *logger.Logger) *Runner {
	return &Runner{
		loader: loader,
		engine: engine,
		logger: log.Module("backtest_runner"),
	}
}

// Run fills config.Series from the loader and runs the simulation. A zero
// StartDate falls back to the allocation's first date.
func (r *Runner) Run(ctx context.Context, config Config) (*Result, error) {
	if err := config.Allocation.Validate(); err != nil {
		return nil, err
	}

	if config.StartDate.IsZero() {
		config.StartDate = config.Allocation.FirstDate
	}
	if config.StartDate.IsZero() {
		return nil, fmt.Errorf("start date is required")
	}
	if config.Frequency == "" {
		config.Frequency = contracts.ParseFrequency(config.Allocation.Rebalance)
	}

	start := contracts.Date(config.StartDate)
	end := config.EndDate
	if end.IsZero() {
		end = r.engine.now()
	}
	end = contracts.Date(end)

	pad := config.DividendPadDays
	if pad <= 0 {
		pad = DefaultDividendPadDays
	}
	from := start.AddDate(0, 0, -(pad + HistoryLookbackDays))

	tickers := append(config.Allocation.Tickers(), config.Benchmarks...)
	series, err := r.loader.LoadAll(ctx, tickers, from, end)
	if err != nil {
		return nil, err
	}

	r.logger.WithFields(map[string]interface{}{
		"tickers": len(series),
		"from":    from.Format(contracts.DateLayout),
		"to":      end.Format(contracts.DateLayout),
	}).Info("History loaded for backtest")

	config.Series = series
	config.EndDate = end
	return r.engine.Run(ctx, config)
}
