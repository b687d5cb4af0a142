package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/pkg/logger"
)

type stubLoader struct {
	series   map[string]contracts.PriceSeries
	err      error
	tickers  []string
	from, to time.Time
}

func (s *stubLoader) LoadAll(ctx context.Context, tickers []string, from, to time.Time) (map[string]contracts.PriceSeries, error) {
	s.tickers, s.from, s.to = tickers, from, to
	if s.err != nil {
		return nil, s.err
	}
	return s.series, nil
}

func TestRunner_Run(t *testing.T) {
	loader := &stubLoader{series: map[string]contracts.PriceSeries{
		"AAA": dailySeries("AAA", "2023-12-01", "2024-03-31", flat(100), nil),
		"SPY": dailySeries("SPY", "2023-12-01", "2024-03-31", stepUp("2024-02-01", 100, 110), nil),
	}}

	a := alloc("AAA", 1.0)
	a.FirstDate = date("2024-01-01")
	a.Rebalance = "quarterly"

	runner := NewRunner(loader, newTestEngine(), logger.Nop())
	result, err := runner.Run(context.Background(), Config{
		Allocation: a,
		Benchmarks: []string{"SPY"},
		EndDate:    date("2024-03-31"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA", "SPY"}, loader.tickers)
	assert.Equal(t, date("2023-12-17"), loader.from)
	assert.Equal(t, date("2024-03-31"), loader.to)

	assert.Equal(t, date("2024-01-01"), result.StartDate)
	assert.Equal(t, contracts.FrequencyQuarterly, result.Frequency)
	assert.InDelta(t, 0.10, result.BenchmarkReturns["SPY"], 1e-9)
}

func TestRunner_Errors(t *testing.T) {
	runner := NewRunner(&stubLoader{err: errors.New("upstream down")}, newTestEngine(), logger.Nop())

	_, err := runner.Run(context.Background(), Config{Allocation: alloc("AAA", 1.0)})
	assert.ErrorContains(t, err, "start date is required")

	_, err = runner.Run(context.Background(), Config{Allocation: alloc("AAA", 1.0), StartDate: date("2024-01-01")})
	assert.ErrorContains(t, err, "upstream down")

	_, err = runner.Run(context.Background(), Config{Allocation: alloc("AAA", 0.8, "BBB", 0.8), StartDate: date("2024-01-01")})
	var invalid *contracts.InvalidAllocationError
	assert.ErrorAs(t, err, &invalid)
}
