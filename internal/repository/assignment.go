package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/ports/dispatchtx"
)

const assignmentColumns = `id, order_id, delivery_person_id, restaurant_id, customer_id,
	pickup_address, delivery_address, status, assigned_at, accepted_at, picked_up_at,
	delivered_at, estimated_pickup_time, estimated_delivery_time, actual_distance_km,
	delivery_fee, tip_amount, delivery_notes, proof_of_delivery, created_at, updated_at`

const terminalStatuses = `('delivered', 'cancelled', 'failed')`

// AssignmentRepo represents assignment repository.
type AssignmentRepo struct {
	db *pgxpool.Pool
}

// NewAssignmentRepo creates a new AssignmentRepo.
func NewAssignmentRepo(db *pgxpool.Pool) *AssignmentRepo {
	return &AssignmentRepo{db: db}
}

// WithTx opens a transaction and executes fn within it.
func (r *AssignmentRepo) WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
	}()

	if err := fn(&TxRepo{tx: tx}); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			return fmt.Errorf("rollback tx: %w (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Get returns an assignment by id.
func (r *AssignmentRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Assignment, error) {
	a, err := scanAssignment(r.db.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM delivery_assignments WHERE id = $1`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get assignment %s: %w", id, err)
	}
	return a, nil
}

// CountPending counts non-terminal assignments.
func (r *AssignmentRepo) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM delivery_assignments WHERE status NOT IN `+terminalStatuses,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending assignments: %w", err)
	}
	return n, nil
}

// Analytics aggregates the admin snapshot. Completed figures count deliveries
// at or after since; the average runs from pickup to drop-off.
func (r *AssignmentRepo) Analytics(ctx context.Context, since time.Time) (domain.Analytics, error) {
	var out domain.Analytics
	err := r.db.QueryRow(ctx, `
        SELECT
            (SELECT COUNT(*) FROM delivery_assignments WHERE status NOT IN `+terminalStatuses+`),
            (SELECT COUNT(*) FROM delivery_persons WHERE is_available AND is_active),
            COUNT(*),
            COALESCE(AVG(EXTRACT(EPOCH FROM (delivered_at - picked_up_at)) / 60)
                FILTER (WHERE picked_up_at IS NOT NULL), 0)
        FROM delivery_assignments
        WHERE status = 'delivered' AND delivered_at >= $1
    `, since).Scan(&out.ActiveDeliveries, &out.OnlineCouriers, &out.CompletedToday, &out.AverageDeliveryMinutes)
	if err != nil {
		return domain.Analytics{}, fmt.Errorf("analytics: %w", err)
	}
	return out, nil
}

func scanAssignment(row pgx.Row) (*domain.Assignment, error) {
	var (
		a      domain.Assignment
		status string
	)
	err := row.Scan(
		&a.ID, &a.OrderID, &a.CourierID, &a.RestaurantID, &a.CustomerID,
		&a.PickupAddress, &a.DeliveryAddress, &status, &a.AssignedAt, &a.AcceptedAt, &a.PickedUpAt,
		&a.DeliveredAt, &a.EstimatedPickupAt, &a.EstimatedDeliveryAt, &a.DistanceKm,
		&a.DeliveryFee, &a.TipAmount, &a.Notes, &a.ProofOfDelivery, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = domain.DeliveryStatus(status)
	return &a, nil
}

// TxRepo represents transaction repository.
type TxRepo struct {
	tx pgx.Tx
}

// ReserveCourier - flips a dispatchable courier to unavailable.
func (r *TxRepo) ReserveCourier(ctx context.Context, courierID uuid.UUID) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
        UPDATE delivery_persons
        SET is_available = false, updated_at = now()
        WHERE id = $1 AND is_available AND is_verified AND is_active
    `, courierID)
	if err != nil {
		return false, fmt.Errorf("reserve courier %s: %w", courierID, err)
	}
	return ct.RowsAffected() == 1, nil
}

// InsertAssignment - insert a new assignment.
func (r *TxRepo) InsertAssignment(ctx context.Context, a *domain.Assignment) error {
	_, err := r.tx.Exec(ctx, `
        INSERT INTO delivery_assignments (
            id, order_id, delivery_person_id, restaurant_id, customer_id,
            pickup_address, delivery_address, status, assigned_at,
            estimated_pickup_time, estimated_delivery_time, actual_distance_km,
            delivery_fee, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
    `, a.ID, a.OrderID, a.CourierID, a.RestaurantID, a.CustomerID,
		a.PickupAddress, a.DeliveryAddress, string(a.Status), a.AssignedAt,
		a.EstimatedPickupAt, a.EstimatedDeliveryAt, a.DistanceKm,
		a.DeliveryFee, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if IsDuplicate(err) {
			return fmt.Errorf("open assignment for order %s exists: %w", a.OrderID, apperr.ErrConflict)
		}
		if IsCheckViolation(err) {
			return fmt.Errorf("insert assignment with status %q: %w", a.Status, apperr.ErrInvalid)
		}
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

// GetAssignmentForUpdate - loads and row-locks an assignment.
func (r *TxRepo) GetAssignmentForUpdate(ctx context.Context, id uuid.UUID) (*domain.Assignment, error) {
	a, err := scanAssignment(r.tx.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM delivery_assignments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock assignment %s: %w", id, err)
	}
	return a, nil
}

// ActiveAssignmentByOrderForUpdate - loads and row-locks the open assignment of an order.
func (r *TxRepo) ActiveAssignmentByOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*domain.Assignment, error) {
	a, err := scanAssignment(r.tx.QueryRow(ctx, `
        SELECT `+assignmentColumns+`
        FROM delivery_assignments
        WHERE order_id = $1 AND status NOT IN `+terminalStatuses+`
        FOR UPDATE
    `, orderID))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock open assignment of order %s: %w", orderID, err)
	}
	return a, nil
}

// UpdateAssignment - persists the mutable assignment fields.
func (r *TxRepo) UpdateAssignment(ctx context.Context, a *domain.Assignment) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE delivery_assignments
        SET status = $2,
            accepted_at = $3,
            picked_up_at = $4,
            delivered_at = $5,
            estimated_delivery_time = $6,
            delivery_notes = $7,
            proof_of_delivery = $8,
            updated_at = $9
        WHERE id = $1
    `, a.ID, string(a.Status), a.AcceptedAt, a.PickedUpAt, a.DeliveredAt,
		a.EstimatedDeliveryAt, a.Notes, nullJSON(a.ProofOfDelivery), a.UpdatedAt)
	if err != nil {
		if IsCheckViolation(err) {
			return fmt.Errorf("update assignment %s to %q: %w", a.ID, a.Status, apperr.ErrInvalid)
		}
		return fmt.Errorf("update assignment %s: %w", a.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("assignment %s not found", a.ID)
	}
	return nil
}

// CompleteDelivery - counts a successful delivery and releases the courier.
func (r *TxRepo) CompleteDelivery(ctx context.Context, courierID uuid.UUID, earnings float64, minutes *int) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE delivery_persons
        SET total_deliveries = total_deliveries + 1,
            successful_deliveries = successful_deliveries + 1,
            earnings_today = earnings_today + $2,
            earnings_this_month = earnings_this_month + $2,
            average_delivery_time = CASE
                WHEN $3::INTEGER IS NULL THEN average_delivery_time
                WHEN average_delivery_time IS NULL OR successful_deliveries = 0 THEN $3::INTEGER
                ELSE (average_delivery_time * successful_deliveries + $3::INTEGER) / (successful_deliveries + 1)
            END,
            is_available = true,
            updated_at = now()
        WHERE id = $1
    `, courierID, earnings, minutes)
	if err != nil {
		return fmt.Errorf("complete delivery for courier %s: %w", courierID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("courier %s not found", courierID)
	}
	return nil
}

// CloseUnsuccessful - counts an unsuccessful delivery and releases the courier.
func (r *TxRepo) CloseUnsuccessful(ctx context.Context, courierID uuid.UUID) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE delivery_persons
        SET total_deliveries = total_deliveries + 1,
            is_available = true,
            updated_at = now()
        WHERE id = $1
    `, courierID)
	if err != nil {
		return fmt.Errorf("close delivery for courier %s: %w", courierID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("courier %s not found", courierID)
	}
	return nil
}

// nullJSON maps an empty payload to SQL NULL.
func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

var _ dispatchtx.Repository = (*TxRepo)(nil)
