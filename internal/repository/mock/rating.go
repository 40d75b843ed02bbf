package mock

import (
	"context"

	"carona/internal/domain"
	"carona/internal/repository"
)

// RatingRepository is an in-memory repository.RatingRepository.
type RatingRepository struct {
	store *Store

	// Error injection
	SummaryError error
	// SummaryCallCount counts reads that reached the repository.
	SummaryCallCount int
}

// NewRatingRepository creates a rating repository over store.
func NewRatingRepository(store *Store) *RatingRepository {
	return &RatingRepository{store: store}
}

func (m *RatingRepository) RateDriver(ctx context.Context, riderID, offerID string, rating domain.Rating) (*domain.Booking, error) {
	return m.rate(riderID, offerID, func(b *domain.Booking) bool {
		if b.DriverRated() {
			return false
		}
		score := rating.Score
		b.DriverScore, b.DriverComment = &score, rating.Comment
		return true
	})
}

func (m *RatingRepository) RatePassenger(ctx context.Context, passengerID, offerID string, rating domain.Rating) (*domain.Booking, error) {
	return m.rate(passengerID, offerID, func(b *domain.Booking) bool {
		if b.PassengerRated() {
			return false
		}
		score := rating.Score
		b.PassengerScore, b.PassengerComment = &score, rating.Comment
		return true
	})
}

func (m *RatingRepository) rate(riderID, offerID string, write func(*domain.Booking) bool) (*domain.Booking, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	b, ok := m.store.bookings[bookingKey{riderID: riderID, offerID: offerID}]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	if !write(b) {
		return nil, repository.ErrAlreadyRated
	}
	b.UpdatedAt = m.store.now()
	return copyBooking(b), nil
}

func (m *RatingRepository) Summary(ctx context.Context, personID string, role domain.Role) (*domain.RatingSummary, error) {
	if m.SummaryError != nil {
		return nil, m.SummaryError
	}

	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.SummaryCallCount++

	var sum, count int
	for _, b := range m.store.bookings {
		var score *int
		switch role {
		case domain.RoleDriver:
			if offer, ok := m.store.offers[b.OfferID]; ok && offer.DriverID == personID {
				score = b.DriverScore
			}
		case domain.RolePassenger:
			if b.RiderID == personID {
				score = b.PassengerScore
			}
		}
		if score != nil {
			sum += *score
			count++
		}
	}

	summary := &domain.RatingSummary{PersonID: personID, Role: role, Count: count}
	if count > 0 {
		avg := float64(sum) / float64(count)
		summary.Average = &avg
	}
	return summary, nil
}
