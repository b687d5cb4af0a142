package rebalance

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rebalancer/internal/allocation"
	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/internal/execution"
	"github.com/wonny/rebalancer/pkg/logger"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func target() contracts.TargetAllocation {
	return contracts.NewTargetAllocation(
		contracts.Holding{Ticker: "AAPL", Weight: d("0.5")},
		contracts.Holding{Ticker: "MSFT", Weight: d("0.3")},
	)
}

// 10000 cash plus 2 GOOGL worth 5000
func newBroker() *execution.MockBroker {
	b := execution.NewMockBroker(d("10000"))
	b.SetPrice("AAPL", d("150"))
	b.SetPrice("MSFT", d("150"))
	b.SetPosition("GOOGL", d("2"), d("5000"))
	return b
}

func newService(broker execution.Broker, dryRun bool) *Service {
	log := logger.Nop()
	return NewService(
		broker,
		nil,
		allocation.NewDiffer(allocation.DefaultConfig(), log),
		execution.NewPlanner(execution.DefaultPlannerConfig(1), log),
		execution.NewExecutor(broker, nil, log),
		Config{DryRun: dryRun, QuoteWorkers: 2},
		log,
	)
}

func TestService_Plan(t *testing.T) {
	svc := newService(newBroker(), true)

	plan, account, err := svc.Plan(context.Background(), target())
	require.NoError(t, err)

	assert.True(t, account.PortfolioValue().Equal(d("15000")))
	assert.True(t, plan.PortfolioValue.Equal(d("15000")))

	aapl, ok := plan.Get("AAPL")
	require.True(t, ok)
	assert.True(t, aapl.Quantity.Equal(d("50")), aapl.Quantity.String())

	msft, _ := plan.Get("MSFT")
	assert.True(t, msft.Quantity.Equal(d("30")), msft.Quantity.String())

	googl, ok := plan.Get("GOOGL")
	require.True(t, ok)
	assert.True(t, googl.Liquidation)
	assert.True(t, googl.Quantity.Equal(d("-2")))
	assert.True(t, googl.Price.Equal(d("2500")))
}

func TestService_Plan_MissingQuote(t *testing.T) {
	broker := newBroker()
	svc := newService(broker, true)

	alloc := contracts.NewTargetAllocation(contracts.Holding{Ticker: "TSLA", Weight: d("0.5")})
	_, _, err := svc.Plan(context.Background(), alloc)

	var missing *contracts.MissingPriceError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "TSLA", missing.Ticker)
	assert.Empty(t, broker.Orders())
}

func TestService_Plan_InvalidAllocation(t *testing.T) {
	svc := newService(newBroker(), true)

	alloc := contracts.NewTargetAllocation(
		contracts.Holding{Ticker: "AAPL", Weight: d("0.7")},
		contracts.Holding{Ticker: "MSFT", Weight: d("0.5")},
	)
	_, _, err := svc.Plan(context.Background(), alloc)

	var invalid *contracts.InvalidAllocationError
	assert.ErrorAs(t, err, &invalid)
}

func TestService_Rebalance_DryRun(t *testing.T) {
	broker := newBroker()
	svc := newService(broker, true)
	assert.True(t, svc.DryRun())

	outcome, err := svc.Rebalance(context.Background(), target())
	require.NoError(t, err)

	assert.True(t, outcome.DryRun)
	assert.Len(t, outcome.Orders, 3)
	assert.Empty(t, outcome.Submitted)
	assert.Empty(t, broker.Orders(), "dry run never reaches the broker")
}

func TestService_Rebalance_Execute(t *testing.T) {
	broker := newBroker()
	svc := newService(broker, false)

	outcome, err := svc.Rebalance(context.Background(), target())
	require.NoError(t, err)
	require.Len(t, outcome.Submitted, 3)

	orders := broker.Orders()
	require.Len(t, orders, 3)
	assert.Equal(t, "GOOGL", orders[0].Ticker, "sells go first")
	assert.Equal(t, contracts.OrderSideSell, orders[0].Side)

	account, err := broker.GetAccount(context.Background())
	require.NoError(t, err)
	assert.True(t, account.Positions["AAPL"].Quantity.Equal(d("50")))
	assert.True(t, account.Positions["MSFT"].Quantity.Equal(d("30")))
	assert.NotContains(t, account.Positions, "GOOGL")
	assert.True(t, account.Cash.Equal(d("3000")), account.Cash.String())

	// a second pass finds nothing to do
	again, err := svc.Rebalance(context.Background(), target())
	require.NoError(t, err)
	assert.Empty(t, again.Orders)
	assert.Len(t, broker.Orders(), 3)
}

func TestService_Rebalance_StopsOnFailure(t *testing.T) {
	broker := newBroker()
	broker.FailOn("AAPL", errors.New("insufficient buying power"))
	svc := newService(broker, false)

	outcome, err := svc.Rebalance(context.Background(), target())
	require.Error(t, err)

	var execErr *contracts.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "AAPL", execErr.Order.Ticker)
	require.Len(t, execErr.Submitted, 1)
	assert.Equal(t, "GOOGL", execErr.Submitted[0].Ticker)

	require.NotNil(t, outcome)
	assert.Len(t, outcome.Submitted, 1)
	assert.Len(t, broker.Orders(), 1, "MSFT is never submitted")
}
