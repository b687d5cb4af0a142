package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/pkg/logger"
)

// OrderStore persists submitted orders
type OrderStore interface {
	SaveOrder(ctx context.Context, order *contracts.Order) error
}

// Executor submits orders one at a time. The first failure stops the batch;
// nothing is retried.
type Executor struct {
	broker Broker
	store  OrderStore // optional
	logger *logger.Logger
}

// NewExecutor creates a new executor. store may be nil.
func NewExecutor(broker Broker, store OrderStore, log *logger.Logger) *Executor {
	return &Executor{
		broker: broker,
		store:  store,
		logger: log.Module("executor"),
	}
}

// Execute submits orders in order and returns those the broker accepted.
// On failure the error is an *contracts.ExecutionError.
func (e *Executor) Execute(ctx context.Context, orders []contracts.Order) ([]contracts.Order, error) {
	submitted := make([]contracts.Order, 0, len(orders))

	for i := range orders {
		order := orders[i]

		if err := ctx.Err(); err != nil {
			return submitted, e.fail(ctx, order, submitted, err)
		}

		result, err := e.broker.SubmitOrder(ctx, &order)
		switch {
		case err != nil:
		case result == nil:
			err = errors.New("broker returned no order result")
		case !result.Accepted():
			err = fmt.Errorf("order %s: %s", result.Status, result.Message)
		}
		if err != nil {
			return submitted, e.fail(ctx, order, submitted, err)
		}

		order.BrokerID = result.OrderID
		order.Status = result.Status
		order.UpdatedAt = time.Now()
		e.save(ctx, &order)
		submitted = append(submitted, order)

		e.logger.WithFields(map[string]interface{}{
			"order_id":  order.ID,
			"broker_id": order.BrokerID,
			"ticker":    order.Ticker,
			"side":      order.Side,
			"quantity":  order.Quantity.String(),
		}).Info("Order submitted")
	}

	return submitted, nil
}

func (e *Executor) fail(ctx context.Context, order contracts.Order, submitted []contracts.Order, err error) error {
	order.Status = contracts.StatusRejected
	order.UpdatedAt = time.Now()
	e.save(ctx, &order)

	e.logger.WithError(err).WithFields(map[string]interface{}{
		"order_id":  order.ID,
		"ticker":    order.Ticker,
		"side":      order.Side,
		"submitted": len(submitted),
	}).Error("Order submission failed, batch stopped")

	done := make([]contracts.Order, len(submitted))
	copy(done, submitted)
	return &contracts.ExecutionError{Order: order, Submitted: done, Err: err}
}

func (e *Executor) save(ctx context.Context, order *contracts.Order) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveOrder(ctx, order); err != nil {
		e.logger.WithError(err).WithField("order_id", order.ID).Warn("Failed to persist order")
	}
}
