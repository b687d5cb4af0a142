package contracts

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Holding is one row of a target allocation
type Holding struct {
	Ticker string          `json:"ticker" yaml:"ticker"`
	Weight decimal.Decimal `json:"weight" yaml:"weight"`
}

// TargetAllocation is the ordered set of target weights.
// Weights sum to at most 1.0; the remainder is held as cash.
type TargetAllocation struct {
	Holdings []Holding `json:"holdings"`

	// Scheduling metadata from the definition source; not used by the core.
	Rebalance string    `json:"rebalance,omitempty"`
	FirstDate time.Time `json:"first_date,omitempty"`
}

// NewTargetAllocation builds an allocation from ticker/weight pairs in order
func NewTargetAllocation(holdings ...Holding) TargetAllocation {
	out := make([]Holding, len(holdings))
	copy(out, holdings)
	return TargetAllocation{Holdings: out}
}

// Validate enforces non-negative weights, unique tickers and a total ≤ 1
func (a TargetAllocation) Validate() error {
	seen := make(map[string]bool, len(a.Holdings))
	for _, h := range a.Holdings {
		if strings.TrimSpace(h.Ticker) == "" {
			return &InvalidAllocationError{Reason: "empty ticker"}
		}
		if seen[h.Ticker] {
			return &InvalidAllocationError{Reason: "duplicate ticker " + h.Ticker}
		}
		seen[h.Ticker] = true

		if h.Weight.IsNegative() {
			return &InvalidAllocationError{Reason: "negative weight for " + h.Ticker}
		}
	}

	total := a.TotalWeight()
	if total.GreaterThan(decimal.NewFromInt(1)) {
		return &InvalidAllocationError{Reason: "weights exceed 1.0", Total: total}
	}

	return nil
}

// TotalWeight returns the sum of all weights
func (a TargetAllocation) TotalWeight() decimal.Decimal {
	total := decimal.Zero
	for _, h := range a.Holdings {
		total = total.Add(h.Weight)
	}
	return total
}

// CashWeight returns the implicit cash fraction 1 − Σ weights
func (a TargetAllocation) CashWeight() decimal.Decimal {
	return decimal.NewFromInt(1).Sub(a.TotalWeight())
}

// Tickers returns the tickers in allocation order
func (a TargetAllocation) Tickers() []string {
	tickers := make([]string, len(a.Holdings))
	for i, h := range a.Holdings {
		tickers[i] = h.Ticker
	}
	return tickers
}

// Weights returns ticker → weight
func (a TargetAllocation) Weights() map[string]decimal.Decimal {
	weights := make(map[string]decimal.Decimal, len(a.Holdings))
	for _, h := range a.Holdings {
		weights[h.Ticker] = h.Weight
	}
	return weights
}

// Weight returns the target weight of ticker
func (a TargetAllocation) Weight(ticker string) (decimal.Decimal, bool) {
	for _, h := range a.Holdings {
		if h.Ticker == ticker {
			return h.Weight, true
		}
	}
	return decimal.Zero, false
}

// Contains reports whether ticker is targeted
func (a TargetAllocation) Contains(ticker string) bool {
	_, ok := a.Weight(ticker)
	return ok
}
