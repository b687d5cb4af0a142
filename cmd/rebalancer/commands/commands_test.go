package commands

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/pkg/config"
)

func resetBacktestFlags() {
	backtestFrom, backtestTo, backtestFrequency, backtestBenchmarks = "", "", "", ""
	backtestStep, backtestNotional = 0, 0
}

func TestBacktestConfig_Defaults(t *testing.T) {
	resetBacktestFlags()
	target := contracts.NewTargetAllocation(contracts.Holding{Ticker: "VTI", Weight: decimal.NewFromInt(1)})

	cfg, err := backtestConfig(target, []string{"SPY", "QQQ"}, 10000, 5)
	require.NoError(t, err)

	assert.Equal(t, []string{"SPY", "QQQ"}, cfg.Benchmarks)
	assert.Equal(t, 10000.0, cfg.InitialNotional)
	assert.Equal(t, 5, cfg.StepDays)
	assert.Empty(t, cfg.Frequency, "left for the definition's Rebalance column")
	assert.True(t, cfg.StartDate.IsZero())
}

func TestBacktestConfig_Flags(t *testing.T) {
	resetBacktestFlags()
	defer resetBacktestFlags()

	backtestFrom = "2020-01-02"
	backtestTo = "2021-06-30"
	backtestFrequency = "annual"
	backtestBenchmarks = " vti, ,agg"
	backtestStep = 7
	backtestNotional = 50000

	cfg, err := backtestConfig(contracts.TargetAllocation{}, []string{"SPY"}, 10000, 5)
	require.NoError(t, err)

	assert.Equal(t, []string{"VTI", "AGG"}, cfg.Benchmarks)
	assert.Equal(t, contracts.FrequencyAnnually, cfg.Frequency)
	assert.Equal(t, 7, cfg.StepDays)
	assert.Equal(t, 50000.0, cfg.InitialNotional)
	assert.Equal(t, "2020-01-02", cfg.StartDate.Format(contracts.DateLayout))
	assert.Equal(t, "2021-06-30", cfg.EndDate.Format(contracts.DateLayout))

	backtestTo = "30/06/2021"
	_, err = backtestConfig(contracts.TargetAllocation{}, nil, 0, 0)
	assert.ErrorContains(t, err, "--to")
}

func TestTrackedTickers_Flag(t *testing.T) {
	pricesTickers = "spy, qqq,,vti"
	defer func() { pricesTickers = "" }()

	got, err := trackedTickers(&deps{cfg: &config.Config{}})
	require.NoError(t, err)
	assert.Equal(t, []string{"SPY", "QQQ", "VTI"}, got)
}

func TestHistorySource_Unknown(t *testing.T) {
	d := &deps{cfg: &config.Config{}}

	_, err := d.historySource("parquet")
	assert.ErrorContains(t, err, "unknown history source")

	_, err = d.historySource(sourceDB)
	assert.ErrorContains(t, err, "DATABASE_URL")

	_, err = d.historySource(sourceAPI)
	assert.ErrorContains(t, err, "DATA_API_KEY")
}
