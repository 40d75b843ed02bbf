// Package mock provides in-memory implementations of the repository and
// redis interfaces for tests. All repositories created from one Store
// share its state under a single mutex, so multi-row operations such as
// Join are atomic the way a database transaction is.
package mock

import (
	"sort"
	"strings"
	"sync"
	"time"

	"carona/internal/domain"
)

// Store holds offers, bookings, requests and vehicles in memory.
type Store struct {
	mu       sync.Mutex
	offers   map[string]*domain.Offer
	bookings map[bookingKey]*domain.Booking
	requests map[string]*domain.RideRequest
	vehicles map[string]*domain.Vehicle
	seq      int
	now      func() time.Time
}

type bookingKey struct {
	riderID string
	offerID string
}

// NewStore creates an empty store.
func NewStore() *Store {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &Store{
		offers:   make(map[string]*domain.Offer),
		bookings: make(map[bookingKey]*domain.Booking),
		requests: make(map[string]*domain.RideRequest),
		vehicles: make(map[string]*domain.Vehicle),
	}
	// Strictly increasing timestamps keep created_at ordering deterministic.
	s.now = func() time.Time {
		s.seq++
		return base.Add(time.Duration(s.seq) * time.Millisecond)
	}
	return s
}

// AddOffer stores offer as is, including its booked seat count.
func (s *Store) AddOffer(offer *domain.Offer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := *offer
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	s.offers[o.ID] = &o
}

// AddVehicle registers a vehicle.
func (s *Store) AddVehicle(vehicle *domain.Vehicle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := *vehicle
	s.vehicles[v.ID] = &v
}

// Offer returns a copy of the stored offer, or nil.
func (s *Store) Offer(id string) *domain.Offer {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok {
		return nil
	}
	copy := *o
	return &copy
}

// Request returns a copy of the stored request, or nil.
func (s *Store) Request(id string) *domain.RideRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil
	}
	return copyRequest(r)
}

// BookingCount returns the number of bookings on an offer.
func (s *Store) BookingCount(offerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.bookings {
		if key.offerID == offerID {
			n++
		}
	}
	return n
}

func copyRequest(r *domain.RideRequest) *domain.RideRequest {
	c := *r
	if r.OfferID != nil {
		id := *r.OfferID
		c.OfferID = &id
	}
	return &c
}

func copyBooking(b *domain.Booking) *domain.Booking {
	c := *b
	return &c
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func sortByKey[T any](items []T, less func(a, b T) int, id func(T) string, descending bool) {
	sort.SliceStable(items, func(i, j int) bool {
		c := less(items[i], items[j])
		if descending {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		return id(items[i]) < id(items[j])
	})
}

func compareTime(a, b time.Time) int {
	return a.Compare(b)
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
