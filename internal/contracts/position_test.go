package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPosition_ImpliedPrice(t *testing.T) {
	p := Position{Ticker: "GOOGL", Quantity: d("2"), MarketValue: d("5000")}
	price, ok := p.ImpliedPrice()
	require.True(t, ok)
	assert.True(t, price.Equal(d("2500")))

	_, ok = Position{Ticker: "X", MarketValue: d("10")}.ImpliedPrice()
	assert.False(t, ok)
}

func TestAccount_PortfolioValue(t *testing.T) {
	acct := Account{
		Cash: d("1000.50"),
		Positions: map[string]Position{
			"AAPL": {Ticker: "AAPL", Quantity: d("10"), MarketValue: d("1500")},
			"MSFT": {Ticker: "MSFT", Quantity: d("4"), MarketValue: d("1000")},
		},
	}
	assert.True(t, acct.PortfolioValue().Equal(d("3500.50")))
	assert.True(t, Account{}.PortfolioValue().IsZero())
}

func TestTradePlan_Helpers(t *testing.T) {
	plan := &TradePlan{Deltas: []TradeDelta{
		{Ticker: "AAPL", Quantity: d("33"), Price: d("150")},
		{Ticker: "MSFT", Quantity: d("0"), Price: d("250")},
		{Ticker: "GOOGL", Quantity: d("-2"), Price: d("2500"), Liquidation: true},
	}}

	nz := plan.NonZero()
	require.Len(t, nz, 2)
	assert.Equal(t, OrderSideBuy, nz[0].Side())
	assert.Equal(t, OrderSideSell, nz[1].Side())
	assert.True(t, nz[1].Notional().Equal(d("5000")))

	g, ok := plan.Get("GOOGL")
	require.True(t, ok)
	assert.True(t, g.Liquidation)
	_, ok = plan.Get("TSLA")
	assert.False(t, ok)
}
