package repository

import (
	"context"

	"carona/internal/domain"
)

// VehicleRegistry exposes the driver-vehicle records owned by the registration service.
type VehicleRegistry interface {
	// GetByID retrieves a vehicle by ID.
	GetByID(ctx context.Context, id string) (*domain.Vehicle, error)
}
