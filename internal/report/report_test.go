package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rebalancer/internal/contracts"
)

func sampleRecords() []contracts.ReturnRecord {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	return []contracts.ReturnRecord{
		{Date: start, PortfolioReturn: 0, Benchmarks: map[string]float64{"SPY": 0, "QQQ": 0}},
		{Date: start.AddDate(0, 0, 5), PortfolioReturn: 0.0125, Benchmarks: map[string]float64{"SPY": 0.02, "QQQ": -0.01}},
		{Date: start.AddDate(0, 0, 10), PortfolioReturn: 0.05, Benchmarks: map[string]float64{"SPY": 0.031, "QQQ": 0.12}},
	}
}

func TestPercentSeries(t *testing.T) {
	names, values := percentSeries(sampleRecords())

	assert.Equal(t, []string{"Portfolio", "QQQ", "SPY"}, names)
	assert.Equal(t, []float64{0, 1.25, 5}, values[0])
	assert.Equal(t, []float64{0, -1, 12}, values[1])
	assert.Equal(t, []float64{0, 2, 3.1}, values[2])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRecords()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Date,Portfolio,QQQ,SPY", lines[0])
	assert.Equal(t, "2024-01-07,1.25,-1.00,2.00", lines[2])
	assert.Equal(t, "2024-01-12,5.00,12.00,3.10", lines[3])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "Date,Portfolio\n", buf.String())
}

func TestRenderChart(t *testing.T) {
	png, err := RenderChart(sampleRecords(), ChartOptions{Title: "Backtest"})
	require.NoError(t, err)
	require.Greater(t, len(png), 8)
	assert.Equal(t, []byte("\x89PNG"), png[:4])

	_, err = RenderChart(nil, ChartOptions{})
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestPaddedRange(t *testing.T) {
	lo, hi := paddedRange([][]float64{{0, 10}, {-5, 2}})
	assert.Equal(t, -6.0, lo)
	assert.Equal(t, 11.0, hi)

	lo, hi = paddedRange([][]float64{{0, 0}})
	assert.Equal(t, -1.0, lo)
	assert.Equal(t, 1.0, hi)
}
