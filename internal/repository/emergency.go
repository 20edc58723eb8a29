package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"courier-dispatch/internal/domain"
)

// EmergencyRepo stores emergency alerts.
type EmergencyRepo struct{ db *pgxpool.Pool }

// NewEmergencyRepo creates a new EmergencyRepo.
func NewEmergencyRepo(db *pgxpool.Pool) *EmergencyRepo { return &EmergencyRepo{db: db} }

// SaveEmergency inserts an alert.
func (r *EmergencyRepo) SaveEmergency(ctx context.Context, e domain.Emergency) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO emergency_alerts (id, delivery_person_id, latitude, longitude, message, raised_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, e.ID, e.CourierID, e.Point.Lat, e.Point.Lng, e.Message, e.RaisedAt)
	if err != nil {
		return fmt.Errorf("save emergency %s: %w", e.ID, err)
	}
	return nil
}
