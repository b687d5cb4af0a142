package contracts

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used across adapters and reports
const DateLayout = "2006-01-02"

// Bar is one trading day: closing price and per-share dividend paid that day
type Bar struct {
	Date     time.Time       `json:"date"`
	Close    decimal.Decimal `json:"close"`
	Dividend decimal.Decimal `json:"dividend"`
}

// PriceSeries is a per-ticker daily history. Dates are strictly increasing;
// gaps are allowed.
type PriceSeries struct {
	Ticker string `json:"ticker"`
	Bars   []Bar  `json:"bars"`
}

// Validate checks ordering and prices
func (s PriceSeries) Validate() error {
	for i, b := range s.Bars {
		if b.Close.IsNegative() {
			return &InvalidSeriesError{Ticker: s.Ticker, Reason: "negative close on " + b.Date.Format(DateLayout)}
		}
		if i > 0 && !b.Date.After(s.Bars[i-1].Date) {
			return &InvalidSeriesError{Ticker: s.Ticker, Reason: "dates not strictly increasing at " + b.Date.Format(DateLayout)}
		}
	}
	return nil
}

// Len returns the number of bars
func (s PriceSeries) Len() int {
	return len(s.Bars)
}

// First returns the earliest bar
func (s PriceSeries) First() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[0], true
}

// Last returns the latest bar
func (s PriceSeries) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// PriceAt returns the close of the last bar on or before d
func (s PriceSeries) PriceAt(d time.Time) (decimal.Decimal, bool) {
	i := s.indexAtOrBefore(d)
	if i < 0 {
		return decimal.Zero, false
	}
	return s.Bars[i].Close, true
}

// FirstNonPositive returns the first bar priced at zero or below among the
// bars PriceAt can resolve for dates in [from, to]
func (s PriceSeries) FirstNonPositive(from, to time.Time) (Bar, bool) {
	i := s.indexAtOrBefore(from)
	if i < 0 {
		i = 0
	}
	for ; i < len(s.Bars) && !s.Bars[i].Date.After(to); i++ {
		if !s.Bars[i].Close.IsPositive() {
			return s.Bars[i], true
		}
	}
	return Bar{}, false
}

// DividendsBetween sums per-share dividends paid in (after, upTo]
func (s PriceSeries) DividendsBetween(after, upTo time.Time) decimal.Decimal {
	total := decimal.Zero
	start := sort.Search(len(s.Bars), func(i int) bool {
		return s.Bars[i].Date.After(after)
	})
	for i := start; i < len(s.Bars) && !s.Bars[i].Date.After(upTo); i++ {
		total = total.Add(s.Bars[i].Dividend)
	}
	return total
}

// Slice returns the bars with from ≤ date ≤ to as a new series
func (s PriceSeries) Slice(from, to time.Time) PriceSeries {
	out := PriceSeries{Ticker: s.Ticker}
	for _, b := range s.Bars {
		if b.Date.Before(from) || b.Date.After(to) {
			continue
		}
		out.Bars = append(out.Bars, b)
	}
	return out
}

func (s PriceSeries) indexAtOrBefore(d time.Time) int {
	// first index strictly after d, minus one
	return sort.Search(len(s.Bars), func(i int) bool {
		return s.Bars[i].Date.After(d)
	}) - 1
}

// Date truncates t to a UTC calendar day
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a UTC date
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
