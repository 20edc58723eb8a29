package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
)

// OrderRepo reads dispatch facts from the local orders table.
type OrderRepo struct{ db *pgxpool.Pool }

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(db *pgxpool.Pool) *OrderRepo { return &OrderRepo{db: db} }

// GetOrderDetails returns the pickup and drop-off facts of an order.
func (r *OrderRepo) GetOrderDetails(ctx context.Context, orderID uuid.UUID) (domain.OrderDetails, error) {
	d := domain.OrderDetails{OrderID: orderID}
	err := r.db.QueryRow(ctx, `
        SELECT restaurant_id, customer_id, pickup_address, delivery_address, delivery_fee
        FROM orders
        WHERE id = $1
    `, orderID).Scan(&d.RestaurantID, &d.CustomerID, &d.PickupAddress, &d.DeliveryAddress, &d.DeliveryFee)
	if err != nil {
		if IsNotFound(err) {
			return domain.OrderDetails{}, fmt.Errorf("order %s: %w", orderID, apperr.ErrNotFound)
		}
		return domain.OrderDetails{}, fmt.Errorf("get order %s: %w: %w", orderID, apperr.ErrInternal, err)
	}
	return d, nil
}

// SaveOrder upserts the dispatch facts of an order.
func (r *OrderRepo) SaveOrder(ctx context.Context, d domain.OrderDetails) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO orders (id, restaurant_id, customer_id, pickup_address, delivery_address, delivery_fee)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (id) DO UPDATE
        SET restaurant_id = EXCLUDED.restaurant_id,
            customer_id = EXCLUDED.customer_id,
            pickup_address = EXCLUDED.pickup_address,
            delivery_address = EXCLUDED.delivery_address,
            delivery_fee = EXCLUDED.delivery_fee
    `, d.OrderID, d.RestaurantID, d.CustomerID, d.PickupAddress, d.DeliveryAddress, d.DeliveryFee)
	if err != nil {
		return fmt.Errorf("save order %s: %w", d.OrderID, err)
	}
	return nil
}
