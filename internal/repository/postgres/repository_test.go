package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carona/internal/domain"
	"carona/internal/repository"
	"carona/internal/repository/postgres"
)

// openTestDB connects to TEST_DATABASE_URL and applies the schema, or skips.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(30)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Ping())
	require.NoError(t, postgres.Migrate(context.Background(), db))
	return db
}

type repos struct {
	offers   *postgres.OfferRepository
	bookings *postgres.BookingRepository
	ratings  *postgres.RatingRepository
	requests *postgres.RequestRepository
}

func newRepos(db *sql.DB) repos {
	tx := postgres.NewTxRunner(db, 5, 10*time.Millisecond)
	return repos{
		offers:   postgres.NewOfferRepository(db, tx),
		bookings: postgres.NewBookingRepository(db, tx),
		ratings:  postgres.NewRatingRepository(db),
		requests: postgres.NewRequestRepository(db, tx),
	}
}

var departure = time.Date(2030, 6, 1, 8, 0, 0, 0, time.UTC)

// newOffer builds an offer whose origin is unique to the test run.
func newOffer(driverID, origin string, price float64, seats int, at time.Time) *domain.Offer {
	now := time.Now().UTC()
	return &domain.Offer{
		ID:          uuid.New().String(),
		DriverID:    driverID,
		VehicleID:   "vehicle-" + driverID,
		DepartureAt: at,
		Price:       price,
		Origin:      origin,
		Destination: "Porto",
		Seats:       seats,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, postgres.Migrate(context.Background(), db))
}

func TestBookingRepository_ConcurrentJoinsOnLastSeat(t *testing.T) {
	db := openTestDB(t)
	r := newRepos(db)
	ctx := context.Background()

	offer := newOffer(uuid.New().String(), "Coimbra "+uuid.New().String(), 10, 1, departure)
	require.NoError(t, r.offers.Create(ctx, offer))

	const riders = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		full      int
		other     []error
	)
	for i := 0; i < riders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.bookings.Join(ctx, repository.JoinParams{RiderID: uuid.New().String(), OfferID: offer.ID})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, repository.ErrRideFull):
				full++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, other)
	assert.Equal(t, 1, successes)
	assert.Equal(t, riders-1, full)

	stored, err := r.offers.GetByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.BookedSeats)
}

func TestBookingRepository_JoinLeave(t *testing.T) {
	db := openTestDB(t)
	r := newRepos(db)
	ctx := context.Background()

	driverID := uuid.New().String()
	riderID := uuid.New().String()
	offer := newOffer(driverID, "Braga "+uuid.New().String(), 12, 2, departure)
	require.NoError(t, r.offers.Create(ctx, offer))

	_, err := r.bookings.Join(ctx, repository.JoinParams{RiderID: driverID, OfferID: offer.ID})
	assert.ErrorIs(t, err, repository.ErrOwnOffer)

	_, err = r.bookings.Join(ctx, repository.JoinParams{RiderID: riderID, OfferID: offer.ID})
	require.NoError(t, err)

	_, err = r.bookings.Join(ctx, repository.JoinParams{RiderID: riderID, OfferID: offer.ID})
	assert.ErrorIs(t, err, repository.ErrAlreadyJoined)

	_, err = r.bookings.Join(ctx, repository.JoinParams{RiderID: riderID, OfferID: uuid.New().String()})
	assert.ErrorIs(t, err, repository.ErrOfferNotFound)

	require.NoError(t, r.bookings.Leave(ctx, riderID, offer.ID))
	assert.ErrorIs(t, r.bookings.Leave(ctx, riderID, offer.ID), repository.ErrBookingNotFound)

	stored, err := r.offers.GetByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.BookedSeats)
}

func TestOfferRepository_UpdateCapacityAndDelete(t *testing.T) {
	db := openTestDB(t)
	r := newRepos(db)
	ctx := context.Background()

	offer := newOffer(uuid.New().String(), "Faro "+uuid.New().String(), 20, 3, departure)
	require.NoError(t, r.offers.Create(ctx, offer))
	var riders []string
	for i := 0; i < 2; i++ {
		riderID := uuid.New().String()
		_, err := r.bookings.Join(ctx, repository.JoinParams{RiderID: riderID, OfferID: offer.ID})
		require.NoError(t, err)
		riders = append(riders, riderID)
	}

	one := 1
	_, err := r.offers.Update(ctx, offer.ID, domain.OfferPatch{Seats: &one})
	assert.ErrorIs(t, err, repository.ErrCapacityViolation)

	two := 2
	price := 18.5
	updated, err := r.offers.Update(ctx, offer.ID, domain.OfferPatch{Seats: &two, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Seats)
	assert.Equal(t, 18.5, updated.Price)
	assert.Equal(t, 0, updated.RemainingSeats())

	_, err = r.offers.Update(ctx, uuid.New().String(), domain.OfferPatch{Price: &price})
	assert.ErrorIs(t, err, repository.ErrOfferNotFound)

	_, err = r.offers.Delete(ctx, offer.ID, false)
	assert.ErrorIs(t, err, repository.ErrOfferOccupied)

	removed, err := r.offers.Delete(ctx, offer.ID, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, riders, removed)

	_, err = r.offers.GetByID(ctx, offer.ID)
	assert.ErrorIs(t, err, repository.ErrOfferNotFound)
}

func TestOfferRepository_FindCheapest(t *testing.T) {
	db := openTestDB(t)
	r := newRepos(db)
	ctx := context.Background()

	origin := "Evora " + uuid.New().String()
	requesterID := uuid.New().String()

	expensive := newOffer(uuid.New().String(), origin, 20, 2, departure)
	cheapLate := newOffer(uuid.New().String(), origin, 15, 2, departure.Add(2*time.Hour))
	cheapEarly := newOffer(uuid.New().String(), origin, 15, 2, departure.Add(time.Hour))
	overBudget := newOffer(uuid.New().String(), origin, 30, 2, departure)
	own := newOffer(requesterID, origin, 1, 2, departure)
	for _, o := range []*domain.Offer{expensive, cheapLate, cheapEarly, overBudget, own} {
		require.NoError(t, r.offers.Create(ctx, o))
	}

	criteria := domain.MatchCriteria{
		RequesterID:       requesterID,
		EarliestDeparture: departure.Add(-time.Hour),
		LatestDeparture:   departure.Add(3 * time.Hour),
		MaxPrice:          20,
		Origin:            origin,
	}

	found, err := r.offers.FindCheapest(ctx, criteria)
	require.NoError(t, err)
	assert.Equal(t, cheapEarly.ID, found.ID)

	_, err = r.bookings.Join(ctx, repository.JoinParams{RiderID: requesterID, OfferID: cheapEarly.ID})
	require.NoError(t, err)

	found, err = r.offers.FindCheapest(ctx, criteria)
	require.NoError(t, err)
	assert.Equal(t, cheapLate.ID, found.ID, "offers already joined are skipped")

	criteria.MaxPrice = 10
	_, err = r.offers.FindCheapest(ctx, criteria)
	assert.ErrorIs(t, err, repository.ErrOfferNotFound)
}

func TestRatingRepository_RateOnceAndSummary(t *testing.T) {
	db := openTestDB(t)
	r := newRepos(db)
	ctx := context.Background()

	driverID := uuid.New().String()
	first := newOffer(driverID, "Aveiro "+uuid.New().String(), 10, 2, departure)
	second := newOffer(driverID, "Aveiro "+uuid.New().String(), 10, 2, departure)
	require.NoError(t, r.offers.Create(ctx, first))
	require.NoError(t, r.offers.Create(ctx, second))

	empty, err := r.ratings.Summary(ctx, driverID, domain.RoleDriver)
	require.NoError(t, err)
	assert.Nil(t, empty.Average)
	assert.Equal(t, 0, empty.Count)

	riderA := uuid.New().String()
	riderB := uuid.New().String()
	for _, join := range []repository.JoinParams{
		{RiderID: riderA, OfferID: first.ID},
		{RiderID: riderB, OfferID: second.ID},
	} {
		_, err := r.bookings.Join(ctx, join)
		require.NoError(t, err)
	}

	booking, err := r.ratings.RateDriver(ctx, riderA, first.ID, domain.Rating{Score: 5})
	require.NoError(t, err)
	require.NotNil(t, booking.DriverScore)
	assert.Equal(t, 5, *booking.DriverScore)

	_, err = r.ratings.RateDriver(ctx, riderA, first.ID, domain.Rating{Score: 1})
	assert.ErrorIs(t, err, repository.ErrAlreadyRated)

	_, err = r.ratings.RateDriver(ctx, uuid.New().String(), first.ID, domain.Rating{Score: 4})
	assert.ErrorIs(t, err, repository.ErrBookingNotFound)

	_, err = r.ratings.RateDriver(ctx, riderB, second.ID, domain.Rating{Score: 3})
	require.NoError(t, err)

	summary, err := r.ratings.Summary(ctx, driverID, domain.RoleDriver)
	require.NoError(t, err)
	require.NotNil(t, summary.Average)
	assert.InDelta(t, 4.0, *summary.Average, 1e-9)
	assert.Equal(t, 2, summary.Count)

	comment := "on time"
	_, err = r.ratings.RatePassenger(ctx, riderA, first.ID, domain.Rating{Score: 4, Comment: &comment})
	require.NoError(t, err)

	passenger, err := r.ratings.Summary(ctx, riderA, domain.RolePassenger)
	require.NoError(t, err)
	require.NotNil(t, passenger.Average)
	assert.InDelta(t, 4.0, *passenger.Average, 1e-9)
	assert.Equal(t, 1, passenger.Count)
}

func TestRequestRepository_Fulfill(t *testing.T) {
	db := openTestDB(t)
	r := newRepos(db)
	ctx := context.Background()

	now := time.Now().UTC()
	request := &domain.RideRequest{
		ID:                uuid.New().String(),
		RequesterID:       uuid.New().String(),
		EarliestDeparture: departure,
		LatestDeparture:   departure.Add(2 * time.Hour),
		MaxPrice:          25,
		Origin:            "Viseu",
		Destination:       "Porto",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, r.requests.Create(ctx, request))

	offer := newOffer(uuid.New().String(), "Viseu", 22, 3, departure.Add(time.Hour))
	result, err := r.requests.Fulfill(ctx, repository.FulfillParams{RequestID: request.ID, Offer: offer})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Offer.BookedSeats)
	assert.Equal(t, request.RequesterID, result.Booking.RiderID)
	require.NotNil(t, result.Request.OfferID)
	assert.Equal(t, offer.ID, *result.Request.OfferID)

	stored, err := r.requests.GetByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusMatched, stored.Status())

	again := newOffer(uuid.New().String(), "Viseu", 22, 3, departure.Add(time.Hour))
	_, err = r.requests.Fulfill(ctx, repository.FulfillParams{RequestID: request.ID, Offer: again})
	assert.ErrorIs(t, err, repository.ErrRequestAlreadyMatched)

	_, err = r.offers.GetByID(ctx, again.ID)
	assert.ErrorIs(t, err, repository.ErrOfferNotFound, "rolled back")

	price := 30.0
	_, err = r.requests.Update(ctx, request.ID, domain.RequestPatch{MaxPrice: &price})
	assert.ErrorIs(t, err, repository.ErrRequestAlreadyMatched)
}

func TestRepositories_MalformedIDsAreNotFound(t *testing.T) {
	db := openTestDB(t)
	r := newRepos(db)
	ctx := context.Background()

	_, err := r.offers.GetByID(ctx, "abc")
	assert.ErrorIs(t, err, repository.ErrOfferNotFound)

	price := 12.0
	_, err = r.offers.Update(ctx, "abc", domain.OfferPatch{Price: &price})
	assert.ErrorIs(t, err, repository.ErrOfferNotFound)

	_, err = r.offers.Delete(ctx, "abc", true)
	assert.ErrorIs(t, err, repository.ErrOfferNotFound)

	_, err = r.bookings.Join(ctx, repository.JoinParams{RiderID: "rider-1", OfferID: "abc"})
	assert.ErrorIs(t, err, repository.ErrOfferNotFound)

	assert.ErrorIs(t, r.bookings.Leave(ctx, "rider-1", "abc"), repository.ErrBookingNotFound)

	_, err = r.bookings.Get(ctx, "rider-1", "abc")
	assert.ErrorIs(t, err, repository.ErrBookingNotFound)

	_, err = r.ratings.RateDriver(ctx, "rider-1", "abc", domain.Rating{Score: 5})
	assert.ErrorIs(t, err, repository.ErrBookingNotFound)

	_, err = r.requests.GetByID(ctx, "abc")
	assert.ErrorIs(t, err, repository.ErrRequestNotFound)

	_, err = r.requests.Update(ctx, "abc", domain.RequestPatch{MaxPrice: &price})
	assert.ErrorIs(t, err, repository.ErrRequestNotFound)

	assert.ErrorIs(t, r.requests.Delete(ctx, "abc"), repository.ErrRequestNotFound)
}
