package postgres

import (
	"context"
	"database/sql"
	"errors"

	"carona/internal/domain"
	"carona/internal/repository"
)

// VehicleRepository is a PostgreSQL implementation of repository.VehicleRegistry.
// The driver_vehicles table is written by the registration service; this
// repository only reads it.
type VehicleRepository struct {
	q Querier
}

// NewVehicleRepository creates a new PostgreSQL vehicle repository.
func NewVehicleRepository(db *sql.DB) *VehicleRepository {
	return &VehicleRepository{q: db}
}

// GetByID retrieves a vehicle by ID.
func (r *VehicleRepository) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	query := `SELECT id, driver_id, plate, active, created_at FROM driver_vehicles WHERE id = $1`

	var vehicle domain.Vehicle
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&vehicle.ID,
		&vehicle.DriverID,
		&vehicle.Plate,
		&vehicle.Active,
		&vehicle.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrVehicleNotFound
		}
		return nil, err
	}

	return &vehicle, nil
}
