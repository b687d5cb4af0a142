package ibkr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/rebalancer/internal/contracts"
	"github.com/wonny/rebalancer/internal/execution"
)

// SubmitOrder places a single order. A confirmation prompt from the gateway
// is not answered; the order is reported as rejected.
func (c *Client) SubmitOrder(ctx context.Context, order *contracts.Order) (*execution.OrderResult, error) {
	conid, err := c.Conid(ctx, order.Ticker)
	if err != nil {
		return nil, err
	}

	ticket := orderTicket{
		Conid:    conid,
		COID:     order.ID,
		Side:     string(order.Side),
		Quantity: order.Quantity.InexactFloat64(),
		TIF:      "DAY",
	}
	if order.OrderType == contracts.OrderTypeLimit {
		ticket.OrderType = "LMT"
		ticket.Price = order.Price.InexactFloat64()
	} else {
		ticket.OrderType = "MKT"
	}

	var replies []orderReply
	endpoint := c.accountPath("/iserver/account/%s/orders")
	if err := c.orderClient.PostJSONInto(ctx, endpoint, orderRequest{Orders: []orderTicket{ticket}}, &replies); err != nil {
		return nil, fmt.Errorf("place order %s: %w", order.ID, err)
	}
	if len(replies) == 0 {
		return nil, fmt.Errorf("place order %s: empty reply", order.ID)
	}

	reply := replies[0]
	result := &execution.OrderResult{
		OrderID:   reply.OrderID,
		Timestamp: time.Now(),
	}

	switch {
	case reply.Error != "":
		result.Status = contracts.StatusRejected
		result.Message = reply.Error
	case reply.OrderID == "" && len(reply.Message) > 0:
		result.Status = contracts.StatusRejected
		result.Message = "confirmation required: " + strings.Join(reply.Message, "; ")
	case reply.OrderID == "":
		result.Status = contracts.StatusRejected
		result.Message = "no order id returned"
	default:
		result.Status = mapStatus(reply.OrderStatus)
		result.Message = reply.OrderStatus
	}

	c.logger.WithFields(map[string]interface{}{
		"order_id":  order.ID,
		"broker_id": result.OrderID,
		"ticker":    order.Ticker,
		"status":    result.Status,
	}).Info("Order placed")

	return result, nil
}

func mapStatus(s string) contracts.Status {
	switch strings.ToLower(s) {
	case "filled":
		return contracts.StatusFilled
	case "cancelled", "canceled":
		return contracts.StatusCanceled
	case "inactive", "rejected":
		return contracts.StatusRejected
	default:
		return contracts.StatusSubmitted
	}
}
