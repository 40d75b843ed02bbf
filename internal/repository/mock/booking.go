package mock

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"carona/internal/domain"
	"carona/internal/repository"
)

// BookingRepository is an in-memory repository.BookingRepository.
type BookingRepository struct {
	store *Store

	// Counters for verification
	JoinCallCount int32

	// Error injection
	JoinError error
	// BeforeJoin runs before the join takes the store lock.
	BeforeJoin func(params repository.JoinParams)
}

// NewBookingRepository creates a booking repository over store.
func NewBookingRepository(store *Store) *BookingRepository {
	return &BookingRepository{store: store}
}

func (m *BookingRepository) Join(ctx context.Context, params repository.JoinParams) (*domain.Booking, error) {
	atomic.AddInt32(&m.JoinCallCount, 1)
	if m.BeforeJoin != nil {
		m.BeforeJoin(params)
	}
	if m.JoinError != nil {
		return nil, m.JoinError
	}

	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	offer, ok := m.store.offers[params.OfferID]
	if !ok {
		return nil, repository.ErrOfferNotFound
	}
	if offer.DriverID == params.RiderID {
		return nil, repository.ErrOwnOffer
	}
	key := bookingKey{riderID: params.RiderID, offerID: params.OfferID}
	if _, exists := m.store.bookings[key]; exists {
		return nil, repository.ErrAlreadyJoined
	}
	if offer.RemainingSeats() < 1 {
		return nil, repository.ErrRideFull
	}

	var request *domain.RideRequest
	if params.RequestID != "" {
		request, ok = m.store.requests[params.RequestID]
		if !ok {
			return nil, repository.ErrRequestNotFound
		}
		if request.OfferID != nil {
			return nil, repository.ErrRequestAlreadyMatched
		}
	}

	booking := m.store.reserveSeat(offer, params.RiderID)
	if request != nil {
		offerID := offer.ID
		request.OfferID = &offerID
		request.UpdatedAt = booking.CreatedAt
	}
	return copyBooking(booking), nil
}

// reserveSeat must be called with the lock held.
func (s *Store) reserveSeat(offer *domain.Offer, riderID string) *domain.Booking {
	now := s.now()
	booking := &domain.Booking{
		ID:        uuid.New().String(),
		RiderID:   riderID,
		OfferID:   offer.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.bookings[bookingKey{riderID: riderID, offerID: offer.ID}] = booking
	offer.BookedSeats++
	offer.UpdatedAt = now
	return booking
}

func (m *BookingRepository) Leave(ctx context.Context, riderID, offerID string) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	key := bookingKey{riderID: riderID, offerID: offerID}
	if _, ok := m.store.bookings[key]; !ok {
		return repository.ErrBookingNotFound
	}
	delete(m.store.bookings, key)

	if offer, ok := m.store.offers[offerID]; ok {
		offer.BookedSeats--
	}
	for _, r := range m.store.requests {
		if r.RequesterID == riderID && r.OfferID != nil && *r.OfferID == offerID {
			r.OfferID = nil
		}
	}
	return nil
}

func (m *BookingRepository) Get(ctx context.Context, riderID, offerID string) (*domain.Booking, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	b, ok := m.store.bookings[bookingKey{riderID: riderID, offerID: offerID}]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return copyBooking(b), nil
}

func (m *BookingRepository) List(ctx context.Context, filter domain.BookingFilter) ([]*domain.Booking, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	var bookings []*domain.Booking
	for _, b := range m.store.bookings {
		if filter.RiderID != "" && b.RiderID != filter.RiderID {
			continue
		}
		if filter.OfferID != "" && b.OfferID != filter.OfferID {
			continue
		}
		bookings = append(bookings, copyBooking(b))
	}
	sortByKey(bookings, func(a, b *domain.Booking) int { return compareTime(a.CreatedAt, b.CreatedAt) },
		func(b *domain.Booking) string { return b.ID }, false)

	return page(bookings, filter.Limit, filter.Offset), nil
}
