package backtest

import (
	"time"

	"github.com/wonny/rebalancer/internal/contracts"
)

// simulationState is the mutable state of one backtest run. It is created by
// Engine.Run and never shared.
type simulationState struct {
	holdings []contracts.Holding
	series   map[string]contracts.PriceSeries
	weights  []float64 // aligned with holdings
	cashW    float64

	start         time.Time
	frequency     contracts.Frequency
	notional      float64
	shares        []float64 // aligned with holdings
	cash          float64
	lastRebalance time.Time
	nextRebalance time.Time
	periods       int
}

func newSimulationState(cfg Config, start time.Time) *simulationState {
	holdings := cfg.Allocation.Holdings
	s := &simulationState{
		holdings:      holdings,
		series:        cfg.Series,
		weights:       make([]float64, len(holdings)),
		cashW:         cfg.Allocation.CashWeight().InexactFloat64(),
		start:         start,
		frequency:     cfg.Frequency,
		notional:      cfg.InitialNotional,
		shares:        make([]float64, len(holdings)),
		cash:          cfg.InitialNotional * cfg.Allocation.CashWeight().InexactFloat64(),
		lastRebalance: start.AddDate(0, 0, -cfg.DividendPadDays),
		nextRebalance: start,
	}

	for i, h := range holdings {
		s.weights[i] = h.Weight.InexactFloat64()
		s.shares[i] = s.notional * s.weights[i] / s.price(h.Ticker, start)
	}
	return s
}

// rebalanceDue reports whether a scheduled rebalance is on or before date
func (s *simulationState) rebalanceDue(date time.Time) bool {
	return !s.nextRebalance.After(date)
}

// rebalance redistributes value at the scheduled date. Dividends paid in
// (last, next] are credited as cash before the redistribution.
func (s *simulationState) rebalance() RebalanceEvent {
	at := s.nextRebalance

	dividends := 0.0
	holdingsValue := 0.0
	for i, h := range s.holdings {
		perShare := s.series[h.Ticker].DividendsBetween(s.lastRebalance, at).InexactFloat64()
		dividends += s.shares[i] * perShare
		holdingsValue += s.shares[i] * s.price(h.Ticker, at)
	}

	value := s.cash + holdingsValue + dividends
	for i, h := range s.holdings {
		s.shares[i] = value * s.weights[i] / s.price(h.Ticker, at)
	}
	s.cash = value * s.cashW

	s.lastRebalance = at
	s.periods++
	s.nextRebalance = s.frequency.AddPeriods(s.start, s.periods)

	return RebalanceEvent{Date: at, Value: value, Dividends: dividends}
}

// value marks the portfolio to market at date
func (s *simulationState) value(date time.Time) float64 {
	total := s.cash
	for i, h := range s.holdings {
		total += s.shares[i] * s.price(h.Ticker, date)
	}
	return total
}

// portfolioReturn is the cumulative return against the initial notional
func (s *simulationState) portfolioReturn(date time.Time) float64 {
	return s.value(date)/s.notional - 1
}

func (s *simulationState) price(ticker string, date time.Time) float64 {
	p, _ := s.series[ticker].PriceAt(date)
	return p.InexactFloat64()
}

// benchmarkReturn treats a benchmark as one non-rebalanced holding whose
// dividends accumulate onto its price path.
func benchmarkReturn(series contracts.PriceSeries, start, date time.Time) float64 {
	startPrice, _ := series.PriceAt(start)
	price, _ := series.PriceAt(date)
	adjusted := price.Add(series.DividendsBetween(start, date))
	return adjusted.Div(startPrice).InexactFloat64() - 1
}
