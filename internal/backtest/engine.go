package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/pkg/logger"
)

const (
	DefaultNotional        = 10_000.0
	DefaultStepDays        = 5
	DefaultDividendPadDays = 5
)

// Engine runs backtesting simulations
type Engine struct {
	logger *logger.Logger
	now    func() time.Time
}

// Config holds backtest configuration
type Config struct {
	Allocation contracts.TargetAllocation
	Series     map[string]contracts.PriceSeries // target and benchmark tickers
	Benchmarks []string

	StartDate time.Time
	EndDate   time.Time // zero means today
	Frequency contracts.Frequency

	InitialNotional float64
	StepDays        int // sampling interval in calendar days
	DividendPadDays int // dividend lookback before the first rebalance
}

// Result holds backtest results
type Result struct {
	StartDate time.Time           `json:"start_date"`
	EndDate   time.Time           `json:"end_date"`
	Frequency contracts.Frequency `json:"frequency"`
	StepDays  int                 `json:"step_days"`
	Duration  time.Duration       `json:"duration"`

	Records     []contracts.ReturnRecord `json:"records"`
	Rebalances  []RebalanceEvent         `json:"rebalances"`
	EquityCurve []EquityPoint            `json:"-"`

	// Performance metrics
	InitialValue     float64            `json:"initial_value"`
	FinalValue       float64            `json:"final_value"`
	TotalReturn      float64            `json:"total_return"`
	CAGR             float64            `json:"cagr"`
	Volatility       float64            `json:"volatility"`
	MaxDrawdown      float64            `json:"max_drawdown"`
	BenchmarkReturns map[string]float64 `json:"benchmark_returns"`
}

// EquityPoint represents a point in the equity curve
type EquityPoint struct {
	Date   time.Time
	Equity float64
	Return float64
}

// RebalanceEvent records one redistribution
type RebalanceEvent struct {
	Date      time.Time `json:"date"`
	Value     float64   `json:"value"`
	Dividends float64   `json:"dividends"`
}

// NewEngine creates a new backtest engine
func NewEngine(log *logger.Logger) *Engine {
	return &Engine{
		logger: log.Module("backtest"),
		now:    time.Now,
	}
}

// WithClock replaces the wall clock used when EndDate is zero
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Run executes a backtest simulation. Either the whole record sequence is
// returned or an error; nothing partial.
func (e *Engine) Run(ctx context.Context, config Config) (*Result, error) {
	config = e.withDefaults(config)
	start := contracts.Date(config.StartDate)
	end := contracts.Date(config.EndDate)

	if err := validate(config, start, end); err != nil {
		return nil, err
	}

	e.logger.WithFields(map[string]interface{}{
		"start_date": start.Format(contracts.DateLayout),
		"end_date":   end.Format(contracts.DateLayout),
		"frequency":  string(config.Frequency),
		"tickers":    len(config.Allocation.Holdings),
		"benchmarks": config.Benchmarks,
	}).Info("Starting backtest")

	startTime := time.Now()

	result := &Result{
		StartDate:        start,
		EndDate:          end,
		Frequency:        config.Frequency,
		StepDays:         config.StepDays,
		InitialValue:     config.InitialNotional,
		Records:          make([]contracts.ReturnRecord, 0),
		Rebalances:       make([]RebalanceEvent, 0),
		EquityCurve:      make([]EquityPoint, 0),
		BenchmarkReturns: make(map[string]float64, len(config.Benchmarks)),
	}

	state := newSimulationState(config, start)

	for date := start; !date.After(end); date = date.AddDate(0, 0, config.StepDays) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for state.rebalanceDue(date) {
			result.Rebalances = append(result.Rebalances, state.rebalance())
		}

		record := contracts.ReturnRecord{
			Date:            date,
			PortfolioReturn: state.portfolioReturn(date),
			Benchmarks:      make(map[string]float64, len(config.Benchmarks)),
		}
		for _, b := range config.Benchmarks {
			record.Benchmarks[b] = benchmarkReturn(config.Series[b], start, date)
		}
		result.Records = append(result.Records, record)

		result.EquityCurve = append(result.EquityCurve, EquityPoint{
			Date:   date,
			Equity: state.value(date),
			Return: record.PortfolioReturn,
		})
	}

	result.Duration = time.Since(startTime)
	e.calculateMetrics(result)

	e.logger.WithFields(map[string]interface{}{
		"duration":     result.Duration.Seconds(),
		"steps":        len(result.Records),
		"rebalances":   len(result.Rebalances),
		"total_return": fmt.Sprintf("%.2f%%", result.TotalReturn*100),
		"max_drawdown": fmt.Sprintf("%.2f%%", result.MaxDrawdown*100),
	}).Info("Backtest completed")

	return result, nil
}

func (e *Engine) withDefaults(config Config) Config {
	if config.InitialNotional <= 0 {
		config.InitialNotional = DefaultNotional
	}
	if config.StepDays <= 0 {
		config.StepDays = DefaultStepDays
	}
	if config.DividendPadDays <= 0 {
		config.DividendPadDays = DefaultDividendPadDays
	}
	config.Frequency = contracts.ParseFrequency(string(config.Frequency))
	if config.EndDate.IsZero() {
		config.EndDate = e.now()
	}
	return config
}

func validate(config Config, start, end time.Time) error {
	if err := config.Allocation.Validate(); err != nil {
		return err
	}
	if start.IsZero() {
		return fmt.Errorf("start date is required")
	}
	if end.Before(start) {
		return fmt.Errorf("end date %s is before start date %s",
			end.Format(contracts.DateLayout), start.Format(contracts.DateLayout))
	}

	tickers := append(config.Allocation.Tickers(), config.Benchmarks...)
	for _, ticker := range tickers {
		series, ok := config.Series[ticker]
		if !ok {
			return &contracts.InsufficientHistoryError{Ticker: ticker, Start: start}
		}
		if err := series.Validate(); err != nil {
			return err
		}

		first, ok := series.First()
		if !ok || first.Date.After(start) {
			return &contracts.InsufficientHistoryError{Ticker: ticker, FirstDate: first.Date, Start: start}
		}

		if bar, ok := series.FirstNonPositive(start, end); ok {
			return &contracts.MissingPriceError{Ticker: ticker, Date: bar.Date}
		}
	}

	return nil
}

// calculateMetrics calculates performance metrics from equity curve
func (e *Engine) calculateMetrics(result *Result) {
	if len(result.EquityCurve) == 0 {
		return
	}

	last := result.EquityCurve[len(result.EquityCurve)-1]
	result.FinalValue = last.Equity
	result.TotalReturn = last.Return

	// CAGR
	years := last.Date.Sub(result.StartDate).Hours() / 24 / 365.25
	if years > 0 && result.FinalValue > 0 {
		result.CAGR = math.Pow(result.FinalValue/result.InitialValue, 1.0/years) - 1.0
	}

	// Step returns
	stepReturns := make([]float64, 0, len(result.EquityCurve)-1)
	for i := 1; i < len(result.EquityCurve); i++ {
		prev := result.EquityCurve[i-1].Equity
		if prev == 0 {
			continue
		}
		stepReturns = append(stepReturns, result.EquityCurve[i].Equity/prev-1)
	}

	// Volatility (annualized over sampling steps)
	stepsPerYear := 365.25 / float64(result.StepDays)
	result.Volatility = calculateVolatility(stepReturns) * math.Sqrt(stepsPerYear)

	// Maximum Drawdown
	result.MaxDrawdown = calculateMaxDrawdown(result.EquityCurve)

	final := result.Records[len(result.Records)-1]
	for name, r := range final.Benchmarks {
		result.BenchmarkReturns[name] = r
	}
}

// calculateVolatility calculates standard deviation
func calculateVolatility(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	// Mean
	sum := 0.0
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	// Variance
	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance)
}

// calculateMaxDrawdown calculates maximum drawdown from equity curve
func calculateMaxDrawdown(curve []EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}

	maxDrawdown := 0.0
	peak := curve[0].Equity

	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
		}
		if peak <= 0 {
			continue
		}

		drawdown := (peak - point.Equity) / peak
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}

	return maxDrawdown
}
