package allocation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/pkg/logger"
)

// DefaultFractionalPlaces is the share precision used when fractional trading is on
const DefaultFractionalPlaces int32 = 4

// Config selects the share rounding policy
type Config struct {
	// Fractional keeps FractionalPlaces decimals instead of flooring to whole shares.
	Fractional       bool
	FractionalPlaces int32
}

// DefaultConfig returns whole-share rounding
func DefaultConfig() Config {
	return Config{FractionalPlaces: DefaultFractionalPlaces}
}

// Differ turns target weights and current holdings into share deltas
type Differ struct {
	config Config
	logger *logger.Logger
}

// NewDiffer creates a new differ
func NewDiffer(config Config, log *logger.Logger) *Differ {
	if config.FractionalPlaces <= 0 {
		config.FractionalPlaces = DefaultFractionalPlaces
	}
	return &Differ{
		config: config,
		logger: log.Module("allocation"),
	}
}

// Compute returns the trades that move positions to target at the given prices.
// Every target ticker needs a positive price; tickers held but not targeted are
// fully liquidated at their implied price. The result is freshly built per call.
func (d *Differ) Compute(
	target contracts.TargetAllocation,
	portfolioValue decimal.Decimal,
	positions map[string]contracts.Position,
	prices map[string]decimal.Decimal,
) (*contracts.TradePlan, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if portfolioValue.IsNegative() {
		return nil, &contracts.InvalidAllocationError{Reason: "negative portfolio value " + portfolioValue.String()}
	}

	deltas := make([]contracts.TradeDelta, 0, len(target.Holdings)+len(positions))

	for _, h := range target.Holdings {
		price, ok := prices[h.Ticker]
		if !ok || !price.IsPositive() {
			return nil, &contracts.MissingPriceError{Ticker: h.Ticker}
		}
		deltas = append(deltas, d.targetDelta(h, portfolioValue, positions[h.Ticker], price))
	}

	for _, ticker := range liquidationTickers(target, positions) {
		deltas = append(deltas, d.liquidationDelta(positions[ticker]))
	}

	plan := &contracts.TradePlan{
		PortfolioValue: portfolioValue,
		Deltas:         deltas,
	}

	d.logger.WithFields(map[string]interface{}{
		"portfolio_value": portfolioValue.StringFixed(2),
		"targets":         len(target.Holdings),
		"trades":          len(plan.NonZero()),
	}).Debug("Trade plan computed")

	return plan, nil
}

// DesiredShares returns value × weight / price under the configured rounding
func (d *Differ) DesiredShares(value, weight, price decimal.Decimal) decimal.Decimal {
	raw := value.Mul(weight).Div(price)
	if d.config.Fractional {
		return raw.Truncate(d.config.FractionalPlaces)
	}
	return raw.Floor()
}

func (d *Differ) targetDelta(h contracts.Holding, value decimal.Decimal, pos contracts.Position, price decimal.Decimal) contracts.TradeDelta {
	desired := d.DesiredShares(value, h.Weight, price)
	return contracts.TradeDelta{
		Ticker:   h.Ticker,
		Quantity: desired.Sub(pos.Quantity),
		Price:    price,
		Current:  pos.Quantity,
		Desired:  desired,
	}
}

func (d *Differ) liquidationDelta(pos contracts.Position) contracts.TradeDelta {
	price, ok := pos.ImpliedPrice()
	if !ok {
		d.logger.WithFields(map[string]interface{}{
			"ticker":       pos.Ticker,
			"market_value": pos.MarketValue.String(),
		}).Warn("Held position has zero quantity, skipping liquidation")

		return contracts.TradeDelta{
			Ticker:      pos.Ticker,
			Quantity:    decimal.Zero,
			Price:       decimal.Zero,
			Current:     decimal.Zero,
			Desired:     decimal.Zero,
			Liquidation: true,
		}
	}

	return contracts.TradeDelta{
		Ticker:      pos.Ticker,
		Quantity:    pos.Quantity.Neg(),
		Price:       price,
		Current:     pos.Quantity,
		Desired:     decimal.Zero,
		Liquidation: true,
	}
}

// liquidationTickers returns held tickers absent from target, sorted
func liquidationTickers(target contracts.TargetAllocation, positions map[string]contracts.Position) []string {
	tickers := make([]string, 0)
	for ticker := range positions {
		if !target.Contains(ticker) {
			tickers = append(tickers, ticker)
		}
	}
	sort.Strings(tickers)
	return tickers
}
