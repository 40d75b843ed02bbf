package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carona/internal/domain"
	"carona/internal/repository"
)

func TestJoin_ConcurrentRidersOnLastSeat(t *testing.T) {
	t.Parallel()

	const riders = 20

	f := newFixture(t)
	offer := f.publishOffer(t, "driver-1", 15, 1, departure)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var successes, full int
	start := make(chan struct{})

	for i := 0; i < riders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := f.bookings.Join(context.Background(), fmt.Sprintf("rider-%d", i), offer.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, repository.ErrRideFull):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, riders-1, full)
	assert.Equal(t, 1, f.store.BookingCount(offer.ID))
	assert.Equal(t, 1, f.store.Offer(offer.ID).BookedSeats)
}

func TestJoin_SameRiderTwice(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	offer := f.publishOffer(t, "driver-1", 15, 3, departure)
	f.join(t, "rider-1", offer.ID)

	_, err := f.bookings.Join(context.Background(), "rider-1", offer.ID)
	require.ErrorIs(t, err, repository.ErrAlreadyJoined)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 1, f.store.BookingCount(offer.ID))
}

func TestJoin_DriverCannotJoinOwnOffer(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	offer := f.publishOffer(t, "driver-1", 15, 3, departure)

	_, err := f.bookings.Join(context.Background(), "driver-1", offer.ID)
	assert.ErrorIs(t, err, repository.ErrOwnOffer)
}

func TestJoin_Errors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.bookings.Join(context.Background(), "", "offer-1")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.bookings.Join(context.Background(), "rider-1", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	f.bookingRepo.JoinError = errors.New("connection reset")
	_, err = f.bookings.Join(context.Background(), "rider-1", "offer-1")
	assert.ErrorIs(t, err, domain.ErrInfrastructure)
}

func TestJoin_TxConflictStaysInfrastructure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.bookingRepo.JoinError = repository.ErrTxConflict

	_, err := f.bookings.Join(context.Background(), "rider-1", "offer-1")
	require.ErrorIs(t, err, repository.ErrTxConflict)
	assert.ErrorIs(t, err, domain.ErrInfrastructure)
}

func TestLeave_FreesSeat(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	offer := f.publishOffer(t, "driver-1", 15, 1, departure)
	f.join(t, "rider-1", offer.ID)

	_, err := f.bookings.Join(ctx, "rider-2", offer.ID)
	require.ErrorIs(t, err, repository.ErrRideFull)

	require.NoError(t, f.bookings.Leave(ctx, "rider-1", offer.ID))
	assert.Equal(t, 0, f.store.Offer(offer.ID).BookedSeats)

	f.join(t, "rider-2", offer.ID)

	err = f.bookings.Leave(ctx, "rider-1", offer.ID)
	assert.ErrorIs(t, err, repository.ErrBookingNotFound)
}

func TestListForOffer_OnlyDriver(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	offer := f.publishOffer(t, "driver-1", 15, 3, departure)
	first := f.join(t, "rider-1", offer.ID)
	f.join(t, "rider-2", offer.ID)

	bookings, err := f.bookings.ListForOffer(ctx, offer.ID, "driver-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, first.ID, bookings[0].ID)

	_, err = f.bookings.ListForOffer(ctx, offer.ID, "rider-1", 0, 0)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	mine, err := f.bookings.ListForRider(ctx, "rider-2", 0, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, offer.ID, mine[0].OfferID)
}
