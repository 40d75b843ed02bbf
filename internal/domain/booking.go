package domain

import "time"

// Booking reserves one seat on one offer for one rider. Both rating
// directions live on the booking and can each be written once.
type Booking struct {
	ID               string
	RiderID          string
	OfferID          string
	DriverScore      *int
	DriverComment    *string
	PassengerScore   *int
	PassengerComment *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DriverRated reports whether the rider already rated the driver.
func (b *Booking) DriverRated() bool {
	return b.DriverScore != nil
}

// PassengerRated reports whether the driver already rated the rider.
func (b *Booking) PassengerRated() bool {
	return b.PassengerScore != nil
}

// BookingFilter narrows a booking listing.
type BookingFilter struct {
	RiderID string
	OfferID string
	Limit   int
	Offset  int
}

// Role is the side of a booking a person is rated in.
type Role string

const (
	RoleDriver    Role = "driver"
	RolePassenger Role = "passenger"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleDriver || r == RolePassenger
}

// Rating is a single score with an optional comment.
type Rating struct {
	Score   int
	Comment *string
}

// RatingSummary aggregates the ratings a person received in one role.
// Average is nil when no ratings exist yet.
type RatingSummary struct {
	PersonID string
	Role     Role
	Average  *float64
	Count    int
}
