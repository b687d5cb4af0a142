package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rebalancer/internal/contracts"
)

// Repository handles order persistence
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new execution repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orderColumns = `order_id, broker_id, ticker, side, quantity, ref_price,
		       order_type, status, created_at, updated_at`

// SaveOrder saves an order to database
func (r *Repository) SaveOrder(ctx context.Context, order *contracts.Order) error {
	query := `
		INSERT INTO execution.orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (order_id) DO UPDATE SET
			broker_id = EXCLUDED.broker_id,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		order.ID, order.BrokerID, order.Ticker, string(order.Side), order.Quantity, order.Price,
		string(order.OrderType), string(order.Status), order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}

	return nil
}

// UpdateOrderStatus updates order status
func (r *Repository) UpdateOrderStatus(ctx context.Context, orderID string, status contracts.Status) error {
	query := `
		UPDATE execution.orders
		SET status = $1, updated_at = $2
		WHERE order_id = $3
	`

	tag, err := r.pool.Exec(ctx, query, string(status), time.Now(), orderID)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order not found: %s", orderID)
	}

	return nil
}

// GetOrder retrieves an order by ID
func (r *Repository) GetOrder(ctx context.Context, orderID string) (*contracts.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM execution.orders WHERE order_id = $1`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("order not found: %s", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return order, nil
}

// ListOrders returns orders created at or after since, oldest first
func (r *Repository) ListOrders(ctx context.Context, since time.Time) ([]contracts.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM execution.orders
		WHERE created_at >= $1
		ORDER BY created_at ASC, order_id ASC
	`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]contracts.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return orders, nil
}

func scanOrder(row pgx.Row) (*contracts.Order, error) {
	var (
		order                   contracts.Order
		side, orderType, status string
	)
	err := row.Scan(
		&order.ID, &order.BrokerID, &order.Ticker, &side, &order.Quantity, &order.Price,
		&orderType, &status, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	order.Side = contracts.OrderSide(side)
	order.OrderType = contracts.OrderType(orderType)
	order.Status = contracts.Status(status)
	return &order, nil
}
