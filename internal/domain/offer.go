package domain

import "time"

// Offer represents a ride published by a driver with a fixed number of seats.
type Offer struct {
	ID          string
	DriverID    string
	VehicleID   string
	DepartureAt time.Time
	Price       float64
	Origin      string
	Destination string
	Seats       int // total seats offered
	BookedSeats int // maintained alongside booking inserts/deletes
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RemainingSeats returns the number of seats still available.
func (o *Offer) RemainingSeats() int {
	return o.Seats - o.BookedSeats
}

// IsOccupied reports whether at least one rider has joined the offer.
func (o *Offer) IsOccupied() bool {
	return o.BookedSeats > 0
}

// OfferPatch holds the mutable fields of an offer. Nil fields are left untouched.
type OfferPatch struct {
	VehicleID   *string
	DepartureAt *time.Time
	Price       *float64
	Origin      *string
	Destination *string
	Seats       *int
}

// IsEmpty reports whether the patch changes nothing.
func (p OfferPatch) IsEmpty() bool {
	return p.VehicleID == nil && p.DepartureAt == nil && p.Price == nil &&
		p.Origin == nil && p.Destination == nil && p.Seats == nil
}

// OfferOrder is the sort key for offer searches.
type OfferOrder string

const (
	OfferOrderDeparture OfferOrder = "departure"
	OfferOrderPrice     OfferOrder = "price"
	OfferOrderCreated   OfferOrder = "created"
)

// OfferFilter narrows an offer search. Zero values mean "no constraint".
type OfferFilter struct {
	DepartureFrom *time.Time
	DepartureTo   *time.Time
	MinPrice      *float64
	MaxPrice      *float64
	DriverID      string
	Origin        string // case-insensitive substring
	Destination   string // case-insensitive substring
	MinSeats      *int
	OrderBy       OfferOrder
	Descending    bool
	Limit         int
	Offset        int
}

// OfferPage is one page of an offer search.
type OfferPage struct {
	Offers []*Offer
	Limit  int
	Offset int
}

// MatchCriteria describes the offers a ride request can be matched against.
type MatchCriteria struct {
	RequesterID       string
	EarliestDeparture time.Time
	LatestDeparture   time.Time
	MaxPrice          float64
	Origin            string // optional keyword
	Destination       string // optional keyword
}
