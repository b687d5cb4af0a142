package contracts

import "github.com/shopspring/decimal"

// Position is a held quantity and its market value in account currency
type Position struct {
	Ticker      string          `json:"ticker"`
	Quantity    decimal.Decimal `json:"quantity"`
	MarketValue decimal.Decimal `json:"market_value"`
}

// ImpliedPrice returns market_value / quantity. ok is false for a zero quantity.
func (p Position) ImpliedPrice() (price decimal.Decimal, ok bool) {
	if p.Quantity.IsZero() {
		return decimal.Zero, false
	}
	return p.MarketValue.Div(p.Quantity), true
}

// Account is a point-in-time snapshot of cash and positions
type Account struct {
	Cash      decimal.Decimal     `json:"cash"`
	Positions map[string]Position `json:"positions"`
}

// PortfolioValue returns cash plus the market value of every position
func (a Account) PortfolioValue() decimal.Decimal {
	total := a.Cash
	for _, p := range a.Positions {
		total = total.Add(p.MarketValue)
	}
	return total
}
