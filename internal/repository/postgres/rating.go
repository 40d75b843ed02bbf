package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"carona/internal/domain"
	"carona/internal/repository"
)

// RatingRepository is a PostgreSQL implementation of repository.RatingRepository.
type RatingRepository struct {
	q Querier
}

// NewRatingRepository creates a new PostgreSQL rating repository.
func NewRatingRepository(db *sql.DB) *RatingRepository {
	return &RatingRepository{q: db}
}

// RateDriver writes the rider's rating of the driver if it is not set yet.
func (r *RatingRepository) RateDriver(ctx context.Context, riderID, offerID string, rating domain.Rating) (*domain.Booking, error) {
	return r.rateOnce(ctx, "driver_score", "driver_comment", riderID, offerID, rating)
}

// RatePassenger writes the driver's rating of the passenger if it is not set yet.
func (r *RatingRepository) RatePassenger(ctx context.Context, passengerID, offerID string, rating domain.Rating) (*domain.Booking, error) {
	return r.rateOnce(ctx, "passenger_score", "passenger_comment", passengerID, offerID, rating)
}

// rateOnce is a single conditional update, so two concurrent ratings of the
// same direction cannot both succeed.
func (r *RatingRepository) rateOnce(ctx context.Context, scoreColumn, commentColumn, riderID, offerID string, rating domain.Rating) (*domain.Booking, error) {
	query := fmt.Sprintf(`
		UPDATE bookings SET %[1]s = $1, %[2]s = $2, updated_at = now()
		WHERE rider_id = $3 AND offer_id = $4 AND %[1]s IS NULL
		%[3]s
	`, scoreColumn, commentColumn, returning(bookingColumns))

	booking, err := scanBooking(r.q.QueryRowContext(ctx, query, rating.Score, nullString(rating.Comment), riderID, offerID))
	if err == nil {
		return booking, nil
	}
	if !isMissing(err) {
		return nil, err
	}

	if _, err := getBooking(ctx, r.q, riderID, offerID); err != nil {
		return nil, err
	}
	return nil, repository.ErrAlreadyRated
}

// Summary aggregates the ratings a person received in role.
func (r *RatingRepository) Summary(ctx context.Context, personID string, role domain.Role) (*domain.RatingSummary, error) {
	var query string
	switch role {
	case domain.RoleDriver:
		query = `
			SELECT AVG(b.driver_score)::float8, COUNT(b.driver_score)
			FROM bookings b JOIN offers o ON o.id = b.offer_id
			WHERE o.driver_id = $1 AND b.driver_score IS NOT NULL
		`
	case domain.RolePassenger:
		query = `
			SELECT AVG(passenger_score)::float8, COUNT(passenger_score)
			FROM bookings
			WHERE rider_id = $1 AND passenger_score IS NOT NULL
		`
	default:
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, role)
	}

	var average sql.NullFloat64
	summary := &domain.RatingSummary{PersonID: personID, Role: role}
	if err := r.q.QueryRowContext(ctx, query, personID).Scan(&average, &summary.Count); err != nil {
		return nil, err
	}

	if average.Valid && summary.Count > 0 {
		avg := average.Float64
		summary.Average = &avg
	}
	return summary, nil
}
