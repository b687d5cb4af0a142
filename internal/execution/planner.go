package execution

import (
	"fmt"
	"time"

	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/pkg/logger"
)

// Planner turns a trade plan into broker orders
type Planner struct {
	config PlannerConfig
	logger *logger.Logger
	now    func() time.Time
}

// PlannerConfig defines order construction parameters
type PlannerConfig struct {
	OrderType contracts.OrderType
	IDPrefix  string // order reference prefix, unique per client
}

// DefaultPlannerConfig returns market orders with the given client id as prefix
func DefaultPlannerConfig(clientID int) PlannerConfig {
	return PlannerConfig{
		OrderType: contracts.OrderTypeMarket,
		IDPrefix:  fmt.Sprintf("rb%d", clientID),
	}
}

// NewPlanner creates a new execution planner
func NewPlanner(config PlannerConfig, log *logger.Logger) *Planner {
	if config.OrderType == "" {
		config.OrderType = contracts.OrderTypeMarket
	}
	return &Planner{
		config: config,
		logger: log.Module("planner"),
		now:    time.Now,
	}
}

// Plan creates orders from a trade plan. Sells come first so that their
// proceeds fund the buys; zero deltas are dropped.
func (p *Planner) Plan(plan *contracts.TradePlan) []contracts.Order {
	orders := make([]contracts.Order, 0, len(plan.Deltas))
	now := p.now()

	for _, side := range []contracts.OrderSide{contracts.OrderSideSell, contracts.OrderSideBuy} {
		for _, delta := range plan.NonZero() {
			if delta.Side() != side {
				continue
			}
			orders = append(orders, contracts.Order{
				ID:        fmt.Sprintf("%s-%d-%03d", p.config.IDPrefix, now.Unix(), len(orders)+1),
				Ticker:    delta.Ticker,
				Side:      side,
				Quantity:  delta.Quantity.Abs(),
				Price:     delta.Price,
				OrderType: p.config.OrderType,
				Status:    contracts.StatusPending,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
	}

	p.logger.WithFields(map[string]interface{}{
		"total_orders": len(orders),
		"sell_orders":  countOrders(orders, contracts.OrderSideSell),
		"buy_orders":   countOrders(orders, contracts.OrderSideBuy),
	}).Info("Execution plan created")

	return orders
}

// countOrders counts orders by side
func countOrders(orders []contracts.Order, side contracts.OrderSide) int {
	count := 0
	for _, order := range orders {
		if order.Side == side {
			count++
		}
	}
	return count
}
