package repository

import (
	"context"

	"carona/internal/domain"
)

// OfferRepository defines the persistence operations for ride offers.
type OfferRepository interface {
	// Create persists a new offer with no booked seats.
	Create(ctx context.Context, offer *domain.Offer) error

	// GetByID retrieves an offer by ID.
	GetByID(ctx context.Context, id string) (*domain.Offer, error)

	// Search returns the offers matching filter. Limit must already be resolved.
	Search(ctx context.Context, filter domain.OfferFilter) ([]*domain.Offer, error)

	// Update applies patch atomically. A seat count below the booked
	// count fails with ErrCapacityViolation.
	Update(ctx context.Context, id string, patch domain.OfferPatch) (*domain.Offer, error)

	// Delete removes an offer. Without enforce an occupied offer fails with
	// ErrOfferOccupied; with enforce its bookings are removed in the same
	// transaction and the riders who held them are returned.
	Delete(ctx context.Context, id string, enforce bool) ([]string, error)

	// FindCheapest returns the cheapest joinable offer for criteria, or ErrOfferNotFound.
	FindCheapest(ctx context.Context, criteria domain.MatchCriteria) (*domain.Offer, error)
}
