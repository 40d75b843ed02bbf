package repository

import (
	"context"

	"carona/internal/domain"
)

// FulfillParams describes an offer created by a driver for an open request.
type FulfillParams struct {
	RequestID string
	Offer     *domain.Offer
}

// FulfillResult is the state written by Fulfill.
type FulfillResult struct {
	Request *domain.RideRequest
	Offer   *domain.Offer
	Booking *domain.Booking
}

// RequestRepository defines the persistence operations for ride requests.
type RequestRepository interface {
	// Create persists a new open request.
	Create(ctx context.Context, request *domain.RideRequest) error

	// GetByID retrieves a request by ID.
	GetByID(ctx context.Context, id string) (*domain.RideRequest, error)

	// Update applies patch to an open request. Matched requests fail with ErrRequestAlreadyMatched.
	Update(ctx context.Context, id string, patch domain.RequestPatch) (*domain.RideRequest, error)

	// Delete removes a request.
	Delete(ctx context.Context, id string) error

	// Search returns the requests matching filter. Limit must already be resolved.
	Search(ctx context.Context, filter domain.RequestFilter) ([]*domain.RideRequest, error)

	// Fulfill creates the offer, books the requester on it and links the
	// request, all in one transaction.
	Fulfill(ctx context.Context, params FulfillParams) (*FulfillResult, error)
}
