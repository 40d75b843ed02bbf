package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carona/internal/domain"
	"carona/internal/repository"
	"carona/internal/service"
)

func TestRateDriver_ScoreRange(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	offer := f.publishOffer(t, "driver-1", 10, 2, departure)
	f.join(t, "rider-1", offer.ID)

	for _, score := range []int{0, 6, -1} {
		_, err := f.ratings.RateDriver(context.Background(), service.RateDriverInput{
			OfferID: offer.ID, RiderID: "rider-1", Score: score,
		})
		assert.ErrorIs(t, err, service.ErrInvalidScore, "score %d", score)
	}
}

func TestRateDriver_OnlyOncePerBooking(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	offer := f.publishOffer(t, "driver-1", 10, 2, departure)
	f.join(t, "rider-1", offer.ID)

	comment := "pontual"
	booking, err := f.ratings.RateDriver(ctx, service.RateDriverInput{
		OfferID: offer.ID, RiderID: "rider-1", Score: 5, Comment: &comment,
	})
	require.NoError(t, err)
	require.NotNil(t, booking.DriverScore)
	assert.Equal(t, 5, *booking.DriverScore)
	assert.Equal(t, &comment, booking.DriverComment)

	_, err = f.ratings.RateDriver(ctx, service.RateDriverInput{OfferID: offer.ID, RiderID: "rider-1", Score: 1})
	require.ErrorIs(t, err, repository.ErrAlreadyRated)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRateDriver_RequiresBooking(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	offer := f.publishOffer(t, "driver-1", 10, 2, departure)

	_, err := f.ratings.RateDriver(context.Background(), service.RateDriverInput{OfferID: offer.ID, RiderID: "rider-1", Score: 4})
	assert.ErrorIs(t, err, repository.ErrBookingNotFound)
}

func TestRateDriver_WrongDriver(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	offer := f.publishOffer(t, "driver-1", 10, 2, departure)
	f.join(t, "rider-1", offer.ID)

	_, err := f.ratings.RateDriver(context.Background(), service.RateDriverInput{
		OfferID: offer.ID, RiderID: "rider-1", DriverID: "driver-2", Score: 4,
	})
	assert.ErrorIs(t, err, service.ErrDriverNotOnOffer)
}

func TestRatePassenger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	offer := f.publishOffer(t, "driver-1", 10, 2, departure)
	f.join(t, "rider-1", offer.ID)

	_, err := f.ratings.RatePassenger(ctx, service.RatePassengerInput{
		OfferID: offer.ID, DriverID: "driver-2", PassengerID: "rider-1", Score: 4,
	})
	require.ErrorIs(t, err, service.ErrNotOfferOwner)

	booking, err := f.ratings.RatePassenger(ctx, service.RatePassengerInput{
		OfferID: offer.ID, DriverID: "driver-1", PassengerID: "rider-1", Score: 4,
	})
	require.NoError(t, err)
	require.NotNil(t, booking.PassengerScore)
	assert.Equal(t, 4, *booking.PassengerScore)
	assert.Nil(t, booking.DriverScore, "rating directions are independent")

	_, err = f.ratings.RatePassenger(ctx, service.RatePassengerInput{
		OfferID: offer.ID, DriverID: "driver-1", PassengerID: "rider-1", Score: 2,
	})
	assert.ErrorIs(t, err, repository.ErrAlreadyRated)
}

func TestAverage_DriverAcrossBookings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	first := f.publishOffer(t, "driver-1", 10, 2, departure)
	second := f.publishOffer(t, "driver-1", 12, 2, departure)
	f.join(t, "rider-1", first.ID)
	f.join(t, "rider-2", second.ID)

	_, err := f.ratings.RateDriver(ctx, service.RateDriverInput{OfferID: first.ID, RiderID: "rider-1", Score: 5})
	require.NoError(t, err)
	_, err = f.ratings.RateDriver(ctx, service.RateDriverInput{OfferID: second.ID, RiderID: "rider-2", Score: 3})
	require.NoError(t, err)

	summary, err := f.ratings.Average(ctx, "driver-1", domain.RoleDriver)
	require.NoError(t, err)
	require.NotNil(t, summary.Average)
	assert.InDelta(t, 4.0, *summary.Average, 1e-9)
	assert.Equal(t, 2, summary.Count)
}

func TestAverage_NoRatingsYet(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	summary, err := f.ratings.Average(context.Background(), "driver-new", domain.RoleDriver)
	require.NoError(t, err)
	assert.Nil(t, summary.Average)
	assert.Equal(t, 0, summary.Count)
}

func TestAverage_CacheInvalidatedOnRating(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	offer := f.publishOffer(t, "driver-1", 10, 2, departure)
	f.join(t, "rider-1", offer.ID)

	_, err := f.ratings.Average(ctx, "driver-1", domain.RoleDriver)
	require.NoError(t, err)
	_, err = f.ratings.Average(ctx, "driver-1", domain.RoleDriver)
	require.NoError(t, err)
	assert.Equal(t, 1, f.ratingRepo.SummaryCallCount, "second read served from cache")
	assert.True(t, f.cache.Cached("driver-1", domain.RoleDriver))

	_, err = f.ratings.RateDriver(ctx, service.RateDriverInput{OfferID: offer.ID, RiderID: "rider-1", Score: 5})
	require.NoError(t, err)
	assert.False(t, f.cache.Cached("driver-1", domain.RoleDriver))

	summary, err := f.ratings.Average(ctx, "driver-1", domain.RoleDriver)
	require.NoError(t, err)
	require.NotNil(t, summary.Average)
	assert.Equal(t, 5.0, *summary.Average)
}

func TestAverage_LeaveDiscardsCachedRatings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	offer := f.publishOffer(t, "driver-1", 10, 2, departure)
	f.join(t, "rider-1", offer.ID)

	_, err := f.ratings.RateDriver(ctx, service.RateDriverInput{OfferID: offer.ID, RiderID: "rider-1", Score: 5})
	require.NoError(t, err)
	_, err = f.ratings.RatePassenger(ctx, service.RatePassengerInput{OfferID: offer.ID, DriverID: "driver-1", PassengerID: "rider-1", Score: 4})
	require.NoError(t, err)

	driver, err := f.ratings.Average(ctx, "driver-1", domain.RoleDriver)
	require.NoError(t, err)
	require.NotNil(t, driver.Average)
	passenger, err := f.ratings.Average(ctx, "rider-1", domain.RolePassenger)
	require.NoError(t, err)
	require.NotNil(t, passenger.Average)

	require.NoError(t, f.bookings.Leave(ctx, "rider-1", offer.ID))
	assert.False(t, f.cache.Cached("driver-1", domain.RoleDriver))
	assert.False(t, f.cache.Cached("rider-1", domain.RolePassenger))

	driver, err = f.ratings.Average(ctx, "driver-1", domain.RoleDriver)
	require.NoError(t, err)
	assert.Nil(t, driver.Average)
	assert.Equal(t, 0, driver.Count)

	passenger, err = f.ratings.Average(ctx, "rider-1", domain.RolePassenger)
	require.NoError(t, err)
	assert.Nil(t, passenger.Average)
}

func TestAverage_EnforcedDeleteDiscardsCachedRatings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	offer := f.publishOffer(t, "driver-1", 10, 3, departure)
	for _, rider := range []string{"rider-1", "rider-2"} {
		f.join(t, rider, offer.ID)
		_, err := f.ratings.RateDriver(ctx, service.RateDriverInput{OfferID: offer.ID, RiderID: rider, Score: 4})
		require.NoError(t, err)
		_, err = f.ratings.RatePassenger(ctx, service.RatePassengerInput{OfferID: offer.ID, DriverID: "driver-1", PassengerID: rider, Score: 5})
		require.NoError(t, err)
		_, err = f.ratings.Average(ctx, rider, domain.RolePassenger)
		require.NoError(t, err)
	}
	_, err := f.ratings.Average(ctx, "driver-1", domain.RoleDriver)
	require.NoError(t, err)
	require.True(t, f.cache.Cached("driver-1", domain.RoleDriver))

	require.NoError(t, f.offers.DeleteOffer(ctx, service.DeleteOfferRequest{OfferID: offer.ID, DriverID: "driver-1", Enforce: true}))

	assert.False(t, f.cache.Cached("driver-1", domain.RoleDriver))
	assert.False(t, f.cache.Cached("rider-1", domain.RolePassenger))
	assert.False(t, f.cache.Cached("rider-2", domain.RolePassenger))

	summary, err := f.ratings.Average(ctx, "driver-1", domain.RoleDriver)
	require.NoError(t, err)
	assert.Nil(t, summary.Average)
}

func TestAverage_CacheFailureFallsBackToRepository(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cache.GetError = errors.New("redis down")

	summary, err := f.ratings.Average(context.Background(), "driver-1", domain.RoleDriver)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Count)
}

func TestAverage_Validation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.ratings.Average(context.Background(), "driver-1", domain.Role("admin"))
	assert.ErrorIs(t, err, service.ErrInvalidRole)

	_, err = f.ratings.Average(context.Background(), "", domain.RoleDriver)
	assert.ErrorIs(t, err, service.ErrInvalidPersonID)
}
