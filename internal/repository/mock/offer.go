package mock

import (
	"context"
	"sort"
	"sync/atomic"

	"carona/internal/domain"
	"carona/internal/repository"
)

// OfferRepository is an in-memory repository.OfferRepository.
type OfferRepository struct {
	store *Store

	// Counters for verification
	FindCheapestCallCount int32

	// Error injection
	CreateError       error
	FindCheapestError error
}

// NewOfferRepository creates an offer repository over store.
func NewOfferRepository(store *Store) *OfferRepository {
	return &OfferRepository{store: store}
}

func (m *OfferRepository) Create(ctx context.Context, offer *domain.Offer) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	o := *offer
	o.BookedSeats = 0
	o.CreatedAt = m.store.now()
	o.UpdatedAt = o.CreatedAt
	m.store.offers[o.ID] = &o
	return nil
}

func (m *OfferRepository) GetByID(ctx context.Context, id string) (*domain.Offer, error) {
	if o := m.store.Offer(id); o != nil {
		return o, nil
	}
	return nil, repository.ErrOfferNotFound
}

func (m *OfferRepository) Search(ctx context.Context, filter domain.OfferFilter) ([]*domain.Offer, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	var offers []*domain.Offer
	for _, o := range m.store.offers {
		if !matchesOfferFilter(o, filter) {
			continue
		}
		copy := *o
		offers = append(offers, &copy)
	}

	compare := func(a, b *domain.Offer) int { return compareTime(a.DepartureAt, b.DepartureAt) }
	switch filter.OrderBy {
	case domain.OfferOrderPrice:
		compare = func(a, b *domain.Offer) int { return compareFloat(a.Price, b.Price) }
	case domain.OfferOrderCreated:
		compare = func(a, b *domain.Offer) int { return compareTime(a.CreatedAt, b.CreatedAt) }
	}
	sortByKey(offers, compare, func(o *domain.Offer) string { return o.ID }, filter.Descending)

	return page(offers, filter.Limit, filter.Offset), nil
}

func matchesOfferFilter(o *domain.Offer, f domain.OfferFilter) bool {
	switch {
	case f.DepartureFrom != nil && o.DepartureAt.Before(*f.DepartureFrom):
		return false
	case f.DepartureTo != nil && o.DepartureAt.After(*f.DepartureTo):
		return false
	case f.MinPrice != nil && o.Price < *f.MinPrice:
		return false
	case f.MaxPrice != nil && o.Price > *f.MaxPrice:
		return false
	case f.DriverID != "" && o.DriverID != f.DriverID:
		return false
	case f.Origin != "" && !containsFold(o.Origin, f.Origin):
		return false
	case f.Destination != "" && !containsFold(o.Destination, f.Destination):
		return false
	case f.MinSeats != nil && o.RemainingSeats() < *f.MinSeats:
		return false
	}
	return true
}

func (m *OfferRepository) Update(ctx context.Context, id string, patch domain.OfferPatch) (*domain.Offer, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	o, ok := m.store.offers[id]
	if !ok {
		return nil, repository.ErrOfferNotFound
	}
	if patch.Seats != nil && *patch.Seats < o.BookedSeats {
		return nil, repository.ErrCapacityViolation
	}

	if patch.VehicleID != nil {
		o.VehicleID = *patch.VehicleID
	}
	if patch.DepartureAt != nil {
		o.DepartureAt = *patch.DepartureAt
	}
	if patch.Price != nil {
		o.Price = *patch.Price
	}
	if patch.Origin != nil {
		o.Origin = *patch.Origin
	}
	if patch.Destination != nil {
		o.Destination = *patch.Destination
	}
	if patch.Seats != nil {
		o.Seats = *patch.Seats
	}
	o.UpdatedAt = m.store.now()

	copy := *o
	return &copy, nil
}

func (m *OfferRepository) Delete(ctx context.Context, id string, enforce bool) ([]string, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	o, ok := m.store.offers[id]
	if !ok {
		return nil, repository.ErrOfferNotFound
	}
	if o.IsOccupied() && !enforce {
		return nil, repository.ErrOfferOccupied
	}

	var riderIDs []string
	for key := range m.store.bookings {
		if key.offerID == id {
			riderIDs = append(riderIDs, key.riderID)
			delete(m.store.bookings, key)
		}
	}
	sort.Strings(riderIDs)
	for _, r := range m.store.requests {
		if r.OfferID != nil && *r.OfferID == id {
			r.OfferID = nil
		}
	}
	delete(m.store.offers, id)
	return riderIDs, nil
}

func (m *OfferRepository) FindCheapest(ctx context.Context, criteria domain.MatchCriteria) (*domain.Offer, error) {
	atomic.AddInt32(&m.FindCheapestCallCount, 1)
	if m.FindCheapestError != nil {
		return nil, m.FindCheapestError
	}

	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	var best *domain.Offer
	for _, o := range m.store.offers {
		if !joinable(m.store, o, criteria) {
			continue
		}
		if best == nil || cheaper(o, best) {
			best = o
		}
	}
	if best == nil {
		return nil, repository.ErrOfferNotFound
	}
	copy := *best
	return &copy, nil
}

func joinable(s *Store, o *domain.Offer, c domain.MatchCriteria) bool {
	if o.DepartureAt.Before(c.EarliestDeparture) || o.DepartureAt.After(c.LatestDeparture) {
		return false
	}
	if o.Price > c.MaxPrice || o.RemainingSeats() < 1 || o.DriverID == c.RequesterID {
		return false
	}
	if _, booked := s.bookings[bookingKey{riderID: c.RequesterID, offerID: o.ID}]; booked {
		return false
	}
	if c.Origin != "" && !containsFold(o.Origin, c.Origin) {
		return false
	}
	if c.Destination != "" && !containsFold(o.Destination, c.Destination) {
		return false
	}
	return true
}

// cheaper orders candidates by price, then departure, then creation, then id.
func cheaper(a, b *domain.Offer) bool {
	if c := compareFloat(a.Price, b.Price); c != 0 {
		return c < 0
	}
	if c := compareTime(a.DepartureAt, b.DepartureAt); c != 0 {
		return c < 0
	}
	if c := compareTime(a.CreatedAt, b.CreatedAt); c != 0 {
		return c < 0
	}
	return a.ID < b.ID
}
