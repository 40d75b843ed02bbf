package mock

import (
	"context"

	"carona/internal/domain"
	"carona/internal/repository"
)

// VehicleRegistry is an in-memory repository.VehicleRegistry.
type VehicleRegistry struct {
	store *Store
}

// NewVehicleRegistry creates a vehicle registry over store.
func NewVehicleRegistry(store *Store) *VehicleRegistry {
	return &VehicleRegistry{store: store}
}

func (m *VehicleRegistry) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	v, ok := m.store.vehicles[id]
	if !ok {
		return nil, repository.ErrVehicleNotFound
	}
	copy := *v
	return &copy, nil
}
