package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is one instruction passed from the planner to the broker
type Order struct {
	ID        string          `json:"id"`
	BrokerID  string          `json:"broker_id,omitempty"`
	Ticker    string          `json:"ticker"`
	Side      OrderSide       `json:"side"` // BUY or SELL
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`      // reference price from the plan
	OrderType OrderType       `json:"order_type"` // MARKET or LIMIT
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// OrderSide represents buy or sell
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType represents market or limit order
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// Status represents order status
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSubmitted Status = "SUBMITTED"
	StatusFilled    Status = "FILLED"
	StatusCanceled  Status = "CANCELED"
	StatusRejected  Status = "REJECTED"
)

// IsMarketOrder checks if the order is a market order
func (o *Order) IsMarketOrder() bool {
	return o.OrderType == OrderTypeMarket
}

// Notional returns quantity × reference price
func (o *Order) Notional() decimal.Decimal {
	return o.Quantity.Mul(o.Price)
}
