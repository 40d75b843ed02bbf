package mock

import (
	"context"

	"carona/internal/domain"
	"carona/internal/repository"
)

// RequestRepository is an in-memory repository.RequestRepository.
type RequestRepository struct {
	store *Store

	// Counters for verification
	DeleteCallCount int

	// Error injection
	CreateError error
}

// NewRequestRepository creates a request repository over store.
func NewRequestRepository(store *Store) *RequestRepository {
	return &RequestRepository{store: store}
}

func (m *RequestRepository) Create(ctx context.Context, request *domain.RideRequest) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	r := copyRequest(request)
	r.OfferID = nil
	r.CreatedAt = m.store.now()
	r.UpdatedAt = r.CreatedAt
	m.store.requests[r.ID] = r
	return nil
}

func (m *RequestRepository) GetByID(ctx context.Context, id string) (*domain.RideRequest, error) {
	if r := m.store.Request(id); r != nil {
		return r, nil
	}
	return nil, repository.ErrRequestNotFound
}

func (m *RequestRepository) Update(ctx context.Context, id string, patch domain.RequestPatch) (*domain.RideRequest, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	r, ok := m.store.requests[id]
	if !ok {
		return nil, repository.ErrRequestNotFound
	}
	if r.OfferID != nil {
		return nil, repository.ErrRequestAlreadyMatched
	}
	updated := patch.Apply(*r)
	updated.UpdatedAt = m.store.now()
	*r = updated
	return copyRequest(r), nil
}

func (m *RequestRepository) Delete(ctx context.Context, id string) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.DeleteCallCount++

	if _, ok := m.store.requests[id]; !ok {
		return repository.ErrRequestNotFound
	}
	delete(m.store.requests, id)
	return nil
}

func (m *RequestRepository) Search(ctx context.Context, filter domain.RequestFilter) ([]*domain.RideRequest, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	var requests []*domain.RideRequest
	for _, r := range m.store.requests {
		if !matchesRequestFilter(r, filter) {
			continue
		}
		requests = append(requests, copyRequest(r))
	}

	compare := func(a, b *domain.RideRequest) int { return compareTime(a.EarliestDeparture, b.EarliestDeparture) }
	switch filter.OrderBy {
	case domain.RequestOrderLatest:
		compare = func(a, b *domain.RideRequest) int { return compareTime(a.LatestDeparture, b.LatestDeparture) }
	case domain.RequestOrderPrice:
		compare = func(a, b *domain.RideRequest) int { return compareFloat(a.MaxPrice, b.MaxPrice) }
	case domain.RequestOrderCreated:
		compare = func(a, b *domain.RideRequest) int { return compareTime(a.CreatedAt, b.CreatedAt) }
	}
	sortByKey(requests, compare, func(r *domain.RideRequest) string { return r.ID }, filter.Descending)

	return page(requests, filter.Limit, filter.Offset), nil
}

func matchesRequestFilter(r *domain.RideRequest, f domain.RequestFilter) bool {
	switch {
	case f.RequesterID != "" && r.RequesterID != f.RequesterID:
		return false
	case f.DepartureFrom != nil && r.LatestDeparture.Before(*f.DepartureFrom):
		return false
	case f.DepartureTo != nil && r.EarliestDeparture.After(*f.DepartureTo):
		return false
	case f.MinPrice != nil && r.MaxPrice < *f.MinPrice:
		return false
	case f.MaxPrice != nil && r.MaxPrice > *f.MaxPrice:
		return false
	case f.OpenOnly && r.OfferID != nil:
		return false
	}
	return true
}

func (m *RequestRepository) Fulfill(ctx context.Context, params repository.FulfillParams) (*repository.FulfillResult, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	r, ok := m.store.requests[params.RequestID]
	if !ok {
		return nil, repository.ErrRequestNotFound
	}
	if r.OfferID != nil {
		return nil, repository.ErrRequestAlreadyMatched
	}
	if r.RequesterID == params.Offer.DriverID {
		return nil, repository.ErrOwnOffer
	}

	offer := *params.Offer
	offer.BookedSeats = 0
	offer.CreatedAt = m.store.now()
	m.store.offers[offer.ID] = &offer

	booking := m.store.reserveSeat(&offer, r.RequesterID)
	offerID := offer.ID
	r.OfferID = &offerID
	r.UpdatedAt = booking.CreatedAt

	offerCopy := offer
	return &repository.FulfillResult{
		Request: copyRequest(r),
		Offer:   &offerCopy,
		Booking: copyBooking(booking),
	}, nil
}
