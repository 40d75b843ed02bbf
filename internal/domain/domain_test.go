package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOffer_Seats(t *testing.T) {
	t.Parallel()

	offer := Offer{Seats: 4, BookedSeats: 3}
	assert.Equal(t, 1, offer.RemainingSeats())
	assert.True(t, offer.IsOccupied())

	offer.BookedSeats = 0
	assert.False(t, offer.IsOccupied())
}

func TestOfferPatch_IsEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, OfferPatch{}.IsEmpty())
	seats := 2
	assert.False(t, OfferPatch{Seats: &seats}.IsEmpty())
}

func TestRideRequest_StatusAndWindow(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)
	request := RideRequest{EarliestDeparture: start, LatestDeparture: start.Add(2 * time.Hour)}

	assert.Equal(t, RequestStatusOpen, request.Status())
	assert.True(t, request.Accepts(start), "window start is inclusive")
	assert.True(t, request.Accepts(start.Add(2*time.Hour)), "window end is inclusive")
	assert.False(t, request.Accepts(start.Add(-time.Second)))
	assert.False(t, request.Accepts(start.Add(2*time.Hour+time.Second)))

	offerID := "offer-1"
	request.OfferID = &offerID
	assert.Equal(t, RequestStatusMatched, request.Status())
}

func TestRequestPatch_Apply(t *testing.T) {
	t.Parallel()

	original := RideRequest{ID: "r1", MaxPrice: 10, Origin: "A", Destination: "B"}
	price := 15.0
	origin := "C"

	patched := RequestPatch{MaxPrice: &price, Origin: &origin}.Apply(original)
	assert.Equal(t, 15.0, patched.MaxPrice)
	assert.Equal(t, "C", patched.Origin)
	assert.Equal(t, "B", patched.Destination)
	assert.Equal(t, 10.0, original.MaxPrice, "original is not modified")
}

func TestRole_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, RoleDriver.Valid())
	assert.True(t, RolePassenger.Valid())
	assert.False(t, Role("admin").Valid())
}

func TestIsCategorized(t *testing.T) {
	t.Parallel()

	assert.True(t, IsCategorized(fmt.Errorf("%w: ride is full", ErrConflict)))
	assert.True(t, IsCategorized(fmt.Errorf("wrapped: %w", fmt.Errorf("%w: x", ErrNotFound))))
	assert.False(t, IsCategorized(errors.New("dial tcp: connection refused")))
	assert.False(t, IsCategorized(nil))
}
