package marketdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/rebalancer/internal/contracts"
)

// Source provides daily price and dividend history
type Source interface {
	Series(ctx context.Context, ticker string, from, to time.Time) (contracts.PriceSeries, error)
}

// Quoter provides the latest price for a ticker
type Quoter interface {
	LatestPrice(ctx context.Context, ticker string) (decimal.Decimal, error)
}

// SeriesStore persists daily bars
type SeriesStore interface {
	SaveSeries(ctx context.Context, series contracts.PriceSeries) error
}

// DefaultWorkers is the fan-out used when a caller passes zero workers
const DefaultWorkers = 4

func uniqueTickers(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
