package repository

import (
	"fmt"

	"carona/internal/domain"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = fmt.Errorf("%w: entity not found", domain.ErrNotFound)

	// ErrOfferNotFound is returned when the referenced offer does not exist.
	ErrOfferNotFound = fmt.Errorf("%w: offer", ErrNotFound)

	// ErrBookingNotFound is returned when the rider has no booking on the offer.
	ErrBookingNotFound = fmt.Errorf("%w: booking", ErrNotFound)

	// ErrRequestNotFound is returned when the referenced ride request does not exist.
	ErrRequestNotFound = fmt.Errorf("%w: ride request", ErrNotFound)

	// ErrVehicleNotFound is returned when the vehicle is not an active vehicle of the driver.
	ErrVehicleNotFound = fmt.Errorf("%w: vehicle", ErrNotFound)

	// ErrRideFull is returned when a join finds no remaining seat.
	ErrRideFull = fmt.Errorf("%w: ride is full", domain.ErrConflict)

	// ErrAlreadyJoined is returned when the rider already holds a booking on the offer.
	ErrAlreadyJoined = fmt.Errorf("%w: rider already joined this ride", domain.ErrConflict)

	// ErrOwnOffer is returned when a driver tries to book a seat on their own offer.
	ErrOwnOffer = fmt.Errorf("%w: driver cannot join own ride", domain.ErrConflict)

	// ErrAlreadyRated is returned when the rating direction was already written.
	ErrAlreadyRated = fmt.Errorf("%w: already rated", domain.ErrConflict)

	// ErrCapacityViolation is returned when an update would drop seats below the booked count.
	ErrCapacityViolation = fmt.Errorf("%w: seats cannot be lower than booked seats", domain.ErrConflict)

	// ErrOfferOccupied is returned when deleting an offer that still has bookings.
	ErrOfferOccupied = fmt.Errorf("%w: offer has bookings", domain.ErrConflict)

	// ErrRequestAlreadyMatched is returned when a request is already linked to an offer.
	ErrRequestAlreadyMatched = fmt.Errorf("%w: ride request already matched", domain.ErrConflict)

	// ErrTxConflict is returned when a transaction keeps failing with
	// serialization or deadlock errors after all retries.
	ErrTxConflict = fmt.Errorf("%w: transaction conflict retries exhausted", domain.ErrInfrastructure)
)
