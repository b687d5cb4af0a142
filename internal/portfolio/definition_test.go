package portfolio

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/wonny/rebalancer/internal/contracts"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func assertWeight(t *testing.T, alloc contracts.TargetAllocation, ticker, want string) {
	t.Helper()
	w, ok := alloc.Weight(ticker)
	require.True(t, ok, "missing %s", ticker)
	assert.True(t, w.Equal(decimal.RequireFromString(want)), "%s weight %s, want %s", ticker, w, want)
}

func TestLoad_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Ticker", "Weight", "Rebalance", "First Date"},
		{"vti", 0.6, "Quarterly", "2024-01-02"},
		{"BND", 0.3, "", ""},
		{"", nil, "", ""},
	}
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellRef, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	alloc, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"VTI", "BND"}, alloc.Tickers())
	assertWeight(t, alloc, "VTI", "0.6")
	assertWeight(t, alloc, "BND", "0.3")
	assert.Equal(t, "Quarterly", alloc.Rebalance)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), alloc.FirstDate)
	assert.True(t, alloc.CashWeight().Equal(decimal.RequireFromString("0.1")))
}

func TestLoad_CSV(t *testing.T) {
	path := writeFile(t, "portfolio.csv", strings.Join([]string{
		"ticker,weight,rebalance",
		"AAPL, 50%,monthly",
		" msft ,0.25,",
		",,",
	}, "\n"))

	alloc, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT"}, alloc.Tickers())
	assertWeight(t, alloc, "AAPL", "0.5")
	assertWeight(t, alloc, "MSFT", "0.25")
	assert.Equal(t, "monthly", alloc.Rebalance)
	assert.True(t, alloc.FirstDate.IsZero())
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "portfolio.yaml", `
rebalance: annually
first_date: "2023-06-30"
holdings:
  - ticker: spy
    weight: 0.7
  - ticker: TLT
    weight: 0.3
`)

	alloc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"SPY", "TLT"}, alloc.Tickers())
	assertWeight(t, alloc, "SPY", "0.7")
	assert.Equal(t, "annually", alloc.Rebalance)
	assert.Equal(t, time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC), alloc.FirstDate)
}

func TestLoad_YAMLUnknownField(t *testing.T) {
	path := writeFile(t, "portfolio.yml", `
holdings:
  - ticker: SPY
    wieght: 0.7
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"over allocated", "p.csv", "Ticker,Weight\nA,0.7\nB,0.4\n"},
		{"missing weight column", "p.csv", "Ticker,Share\nA,0.7\n"},
		{"bad weight", "p.csv", "Ticker,Weight\nA,lots\n"},
		{"duplicate ticker", "p.csv", "Ticker,Weight\nA,0.2\na,0.2\n"},
		{"bad first date", "p.csv", "Ticker,Weight,First Date\nA,0.2,someday\n"},
		{"empty", "p.csv", ""},
		{"unsupported", "p.json", "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_OverAllocatedIsTyped(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("Ticker,Weight\nA,0.7\nB,0.5\n"))
	var invalid *contracts.InvalidAllocationError
	assert.True(t, errors.As(err, &invalid))
}

func TestHash_Deterministic(t *testing.T) {
	a, err := ParseCSV(strings.NewReader("Ticker,Weight\nA,0.5\nB,0.5\n"))
	require.NoError(t, err)
	b, err := ParseCSV(strings.NewReader("Ticker,Weight\nA,0.5\nB,0.5\n"))
	require.NoError(t, err)
	c, err := ParseCSV(strings.NewReader("Ticker,Weight\nB,0.5\nA,0.5\n"))
	require.NoError(t, err)

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, _ := Hash(b)
	hc, _ := Hash(c)

	assert.Len(t, ha, 64)
	assert.Equal(t, ha, hb)
	assert.NotEqual(t, ha, hc)
}
