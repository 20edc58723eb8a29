package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/geo"
)

const courierColumns = `id, name, phone, email, vehicle_type, vehicle_number,
	current_latitude, current_longitude, is_available, is_verified, is_active,
	rating, total_deliveries, successful_deliveries, average_delivery_time,
	earnings_today, earnings_this_month, created_at, updated_at`

// CourierRepo represents courier repository.
type CourierRepo struct{ db *pgxpool.Pool }

// NewCourierRepo creates a new CourierRepo.
func NewCourierRepo(db *pgxpool.Pool) *CourierRepo { return &CourierRepo{db: db} }

func scanCourier(row pgx.Row) (*domain.Courier, error) {
	var (
		c        domain.Courier
		lat, lng *float64
		vehicle  string
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.Phone, &c.Email, &vehicle, &c.VehicleNumber,
		&lat, &lng, &c.IsAvailable, &c.IsVerified, &c.IsActive,
		&c.Stats.Rating, &c.Stats.TotalDeliveries, &c.Stats.SuccessfulDeliveries, &c.Stats.AverageDeliveryMinutes,
		&c.Stats.EarningsToday, &c.Stats.EarningsThisMonth, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.VehicleType = domain.VehicleType(vehicle)
	if lat != nil && lng != nil {
		c.Location = &domain.Coordinate{Lat: *lat, Lng: *lng}
	}
	return &c, nil
}

// Get - returns courier by its ID.
func (r *CourierRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Courier, error) {
	c, err := scanCourier(r.db.QueryRow(ctx,
		`SELECT `+courierColumns+` FROM delivery_persons WHERE id = $1`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get courier %s: %w", id, err)
	}
	return c, nil
}

// Create - creates a new courier.
func (r *CourierRepo) Create(ctx context.Context, c *domain.Courier) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO delivery_persons (
            id, name, phone, email, vehicle_type, vehicle_number,
            is_available, is_verified, is_active, rating, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `, c.ID, c.Name, c.Phone, c.Email, string(c.VehicleType), c.VehicleNumber,
		c.IsAvailable, c.IsVerified, c.IsActive, c.Stats.Rating, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if IsDuplicate(err) {
			return fmt.Errorf("phone %s already registered: %w", c.Phone, apperr.ErrConflict)
		}
		if IsCheckViolation(err) {
			return fmt.Errorf("vehicle type %q: %w", c.VehicleType, apperr.ErrInvalid)
		}
		return fmt.Errorf("create courier: %w", err)
	}
	return nil
}

func (r *CourierRepo) exec(ctx context.Context, op string, id uuid.UUID, q string, args ...any) (bool, error) {
	ct, err := r.db.Exec(ctx, q, append([]any{id}, args...)...)
	if err != nil {
		return false, fmt.Errorf("%s courier %s: %w", op, id, err)
	}
	return ct.RowsAffected() > 0, nil
}

// hasOpenAssignment is true while the delivery_persons row in scope holds a
// non-terminal assignment.
const hasOpenAssignment = `EXISTS (
            SELECT 1 FROM delivery_assignments a
            WHERE a.delivery_person_id = delivery_persons.id
              AND a.status NOT IN ('delivered', 'cancelled', 'failed')
        )`

// Verify marks a courier verified. It becomes available only when it is
// active and holds no open assignment.
func (r *CourierRepo) Verify(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exec(ctx, "verify", id, `
        UPDATE delivery_persons
        SET is_verified = true,
            is_available = is_active AND NOT `+hasOpenAssignment+`,
            updated_at = now()
        WHERE id = $1
    `)
}

// Deactivate soft-deletes a courier.
func (r *CourierRepo) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exec(ctx, "deactivate", id, `
        UPDATE delivery_persons
        SET is_active = false, is_available = false, updated_at = now()
        WHERE id = $1
    `)
}

// SetAvailability sets the shift flag of a courier. Going available only
// applies to a verified, active courier with no open assignment; it reports
// false otherwise.
func (r *CourierRepo) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (bool, error) {
	if !available {
		return r.exec(ctx, "end shift of", id, `
            UPDATE delivery_persons
            SET is_available = false, updated_at = now()
            WHERE id = $1
        `)
	}
	return r.exec(ctx, "start shift of", id, `
        UPDATE delivery_persons
        SET is_available = true, updated_at = now()
        WHERE id = $1 AND is_verified AND is_active
          AND NOT `+hasOpenAssignment)
}

// HasActiveAssignment reports whether the courier holds a non-terminal assignment.
func (r *CourierRepo) HasActiveAssignment(ctx context.Context, courierID uuid.UUID) (bool, error) {
	var busy bool
	err := r.db.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM delivery_assignments
            WHERE delivery_person_id = $1
              AND status NOT IN ('delivered', 'cancelled', 'failed')
        )
    `, courierID).Scan(&busy)
	if err != nil {
		return false, fmt.Errorf("active assignment of courier %s: %w", courierID, err)
	}
	return busy, nil
}

// RecordLocation moves the courier and appends the fix to the trail in one transaction.
func (r *CourierRepo) RecordLocation(ctx context.Context, u domain.LocationUpdate) (moved bool, err error) {
	err = pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `
            UPDATE delivery_persons
            SET current_latitude = $2, current_longitude = $3, updated_at = $4
            WHERE id = $1
        `, u.CourierID, u.Point.Lat, u.Point.Lng, u.Timestamp)
		if err != nil {
			return fmt.Errorf("move courier %s: %w", u.CourierID, err)
		}
		if ct.RowsAffected() == 0 {
			return nil
		}
		moved = true
		_, err = tx.Exec(ctx, `
            INSERT INTO location_updates (delivery_person_id, latitude, longitude, speed, heading, recorded_at)
            VALUES ($1, $2, $3, $4, $5, $6)
        `, u.CourierID, u.Point.Lat, u.Point.Lng, u.Speed, u.Heading, u.Timestamp)
		if err != nil {
			return fmt.Errorf("append location of courier %s: %w", u.CourierID, err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return moved, nil
}

// DispatchableWithin lists available, verified, active couriers positioned inside box.
func (r *CourierRepo) DispatchableWithin(ctx context.Context, box geo.Box) ([]domain.Courier, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+courierColumns+`
        FROM delivery_persons
        WHERE is_available AND is_verified AND is_active
          AND current_latitude BETWEEN $1 AND $2
          AND current_longitude BETWEEN $3 AND $4
    `, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
	if err != nil {
		return nil, fmt.Errorf("list dispatchable couriers: %w", err)
	}
	defer rows.Close()

	var out []domain.Courier
	for rows.Next() {
		c, err := scanCourier(rows)
		if err != nil {
			return nil, fmt.Errorf("scan courier: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// LastLocation returns the stored position of a courier.
func (r *CourierRepo) LastLocation(ctx context.Context, id uuid.UUID) (domain.Coordinate, bool, error) {
	var lat, lng *float64
	err := r.db.QueryRow(ctx,
		`SELECT current_latitude, current_longitude FROM delivery_persons WHERE id = $1`, id,
	).Scan(&lat, &lng)
	if err != nil {
		if IsNotFound(err) {
			return domain.Coordinate{}, false, nil
		}
		return domain.Coordinate{}, false, fmt.Errorf("location of courier %s: %w", id, err)
	}
	if lat == nil || lng == nil {
		return domain.Coordinate{}, false, nil
	}
	return domain.Coordinate{Lat: *lat, Lng: *lng}, true, nil
}

// Gauges counts active couriers and those of them currently available.
func (r *CourierRepo) Gauges(ctx context.Context) (active, available int64, err error) {
	err = r.db.QueryRow(ctx, `
        SELECT
            COUNT(*) FILTER (WHERE is_active),
            COUNT(*) FILTER (WHERE is_active AND is_available AND is_verified)
        FROM delivery_persons
    `).Scan(&active, &available)
	if err != nil {
		return 0, 0, fmt.Errorf("courier gauges: %w", err)
	}
	return active, available, nil
}
