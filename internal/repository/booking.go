package repository

import (
	"context"

	"carona/internal/domain"
)

// JoinParams identifies a seat reservation. RequestID, when set, links
// that ride request to the offer in the same transaction.
type JoinParams struct {
	RiderID   string
	OfferID   string
	RequestID string
}

// BookingRepository defines the persistence operations for bookings.
type BookingRepository interface {
	// Join reserves one seat atomically. It fails with ErrOfferNotFound,
	// ErrOwnOffer, ErrAlreadyJoined, ErrRideFull or ErrRequestAlreadyMatched.
	Join(ctx context.Context, params JoinParams) (*domain.Booking, error)

	// Leave removes the rider's booking and frees its seat.
	Leave(ctx context.Context, riderID, offerID string) error

	// Get retrieves the booking of a rider on an offer.
	Get(ctx context.Context, riderID, offerID string) (*domain.Booking, error)

	// List returns bookings matching filter.
	List(ctx context.Context, filter domain.BookingFilter) ([]*domain.Booking, error)
}

// RatingRepository defines the persistence operations for ratings stored on bookings.
type RatingRepository interface {
	// RateDriver writes the rider's rating of the driver once.
	RateDriver(ctx context.Context, riderID, offerID string, rating domain.Rating) (*domain.Booking, error)

	// RatePassenger writes the driver's rating of a passenger once.
	RatePassenger(ctx context.Context, passengerID, offerID string, rating domain.Rating) (*domain.Booking, error)

	// Summary aggregates the ratings a person received in a role.
	Summary(ctx context.Context, personID string, role domain.Role) (*domain.RatingSummary, error)
}
