package contracts

import "github.com/shopspring/decimal"

// TradeDelta is a signed share quantity to trade for one ticker
type TradeDelta struct {
	Ticker      string          `json:"ticker"`
	Quantity    decimal.Decimal `json:"quantity"` // positive buys, negative sells
	Price       decimal.Decimal `json:"price"`
	Current     decimal.Decimal `json:"current"`
	Desired     decimal.Decimal `json:"desired"`
	Liquidation bool            `json:"liquidation,omitempty"`
}

// IsZero reports whether the delta trades nothing
func (d TradeDelta) IsZero() bool {
	return d.Quantity.IsZero()
}

// Side returns BUY for positive deltas and SELL otherwise
func (d TradeDelta) Side() OrderSide {
	if d.Quantity.IsPositive() {
		return OrderSideBuy
	}
	return OrderSideSell
}

// Notional returns |quantity| × price
func (d TradeDelta) Notional() decimal.Decimal {
	return d.Quantity.Abs().Mul(d.Price)
}

// TradePlan is the ordered output of the allocation differ: target tickers in
// allocation order, then liquidation-only tickers.
type TradePlan struct {
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	Deltas         []TradeDelta    `json:"deltas"`
}

// Get returns the delta for ticker
func (p *TradePlan) Get(ticker string) (TradeDelta, bool) {
	for _, d := range p.Deltas {
		if d.Ticker == ticker {
			return d, true
		}
	}
	return TradeDelta{}, false
}

// NonZero returns the deltas that actually trade
func (p *TradePlan) NonZero() []TradeDelta {
	out := make([]TradeDelta, 0, len(p.Deltas))
	for _, d := range p.Deltas {
		if !d.IsZero() {
			out = append(out, d)
		}
	}
	return out
}
