package contracts

import (
	"sort"
	"time"
)

// PortfolioEntity is the series name used for the simulated portfolio
const PortfolioEntity = "Portfolio"

// ReturnRecord is one sampling step of a backtest: cumulative returns as
// fractions (0.05 = +5%) for the portfolio and each benchmark.
type ReturnRecord struct {
	Date            time.Time          `json:"date"`
	PortfolioReturn float64            `json:"portfolio_return"`
	Benchmarks      map[string]float64 `json:"benchmarks"`
}

// BenchmarkNames returns the sorted benchmark tickers present across records
func BenchmarkNames(records []ReturnRecord) []string {
	seen := make(map[string]bool)
	for _, r := range records {
		for name := range r.Benchmarks {
			seen[name] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
