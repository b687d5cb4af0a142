package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/rebalancer/internal/contracts"
)

// Broker is the position source and order sink
type Broker interface {
	// GetAccount returns cash and every open position
	GetAccount(ctx context.Context) (*contracts.Account, error)

	// LatestPrice returns the last traded price for a ticker
	LatestPrice(ctx context.Context, ticker string) (decimal.Decimal, error)

	// SubmitOrder submits an order to the broker
	SubmitOrder(ctx context.Context, order *contracts.Order) (*OrderResult, error)
}

// OrderResult represents order submission result
type OrderResult struct {
	OrderID   string // broker-assigned id
	Status    contracts.Status
	Message   string
	Timestamp time.Time
}

// Accepted reports whether the broker took the order
func (r *OrderResult) Accepted() bool {
	return r.Status == contracts.StatusSubmitted || r.Status == contracts.StatusFilled
}

// MockBroker is an in-memory paper broker. Orders fill immediately at the
// order's reference price.
type MockBroker struct {
	mu        sync.Mutex
	cash      decimal.Decimal
	prices    map[string]decimal.Decimal
	positions map[string]contracts.Position
	failures  map[string]error
	orders    []contracts.Order
	seq       int
}

// NewMockBroker creates a new mock broker holding only cash
func NewMockBroker(cash decimal.Decimal) *MockBroker {
	return &MockBroker{
		cash:      cash,
		prices:    make(map[string]decimal.Decimal),
		positions: make(map[string]contracts.Position),
		failures:  make(map[string]error),
	}
}

// GetAccount returns a copy of the paper account
func (b *MockBroker) GetAccount(ctx context.Context) (*contracts.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	positions := make(map[string]contracts.Position, len(b.positions))
	for ticker, p := range b.positions {
		if price, ok := b.prices[ticker]; ok {
			p.MarketValue = p.Quantity.Mul(price)
		}
		positions[ticker] = p
	}

	return &contracts.Account{Cash: b.cash, Positions: positions}, nil
}

// LatestPrice returns the price set with SetPrice
func (b *MockBroker) LatestPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	price, ok := b.prices[ticker]
	if !ok {
		return decimal.Zero, &contracts.MissingPriceError{Ticker: ticker}
	}
	return price, nil
}

// SubmitOrder fills the order against the paper account
func (b *MockBroker) SubmitOrder(ctx context.Context, order *contracts.Order) (*OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err, ok := b.failures[order.Ticker]; ok {
		return nil, err
	}

	signed := order.Quantity
	if order.Side == contracts.OrderSideSell {
		signed = signed.Neg()
	}

	pos := b.positions[order.Ticker]
	pos.Ticker = order.Ticker
	pos.Quantity = pos.Quantity.Add(signed)
	pos.MarketValue = pos.Quantity.Mul(order.Price)
	if pos.Quantity.IsZero() {
		delete(b.positions, order.Ticker)
	} else {
		b.positions[order.Ticker] = pos
	}
	b.cash = b.cash.Sub(signed.Mul(order.Price))

	b.seq++
	b.orders = append(b.orders, *order)

	return &OrderResult{
		OrderID:   fmt.Sprintf("MOCK-%d", b.seq),
		Status:    contracts.StatusFilled,
		Message:   "Order filled",
		Timestamp: time.Now(),
	}, nil
}

// SetPrice sets mock price for testing
func (b *MockBroker) SetPrice(ticker string, price decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices[ticker] = price
}

// SetPosition sets a held quantity; market value follows the mock price
func (b *MockBroker) SetPosition(ticker string, quantity, marketValue decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions[ticker] = contracts.Position{Ticker: ticker, Quantity: quantity, MarketValue: marketValue}
}

// FailOn makes every order for ticker fail with err
func (b *MockBroker) FailOn(ticker string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[ticker] = err
}

// Orders returns the orders accepted so far
func (b *MockBroker) Orders() []contracts.Order {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]contracts.Order, len(b.orders))
	copy(out, b.orders)
	return out
}
