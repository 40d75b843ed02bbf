package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"carona/internal/domain"
	"carona/internal/repository/mock"
	"carona/internal/service"
)

var departure = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store       *mock.Store
	offerRepo   *mock.OfferRepository
	bookingRepo *mock.BookingRepository
	requestRepo *mock.RequestRepository
	ratingRepo  *mock.RatingRepository
	vehicles    *mock.VehicleRegistry
	locks       *mock.LockStore
	cache       *mock.RatingCache
	publisher   *recordingPublisher

	offers   *service.OfferService
	bookings *service.BookingService
	matching *service.MatchingService
	ratings  *service.RatingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := mock.NewStore()
	f := &fixture{
		store:       store,
		offerRepo:   mock.NewOfferRepository(store),
		bookingRepo: mock.NewBookingRepository(store),
		requestRepo: mock.NewRequestRepository(store),
		ratingRepo:  mock.NewRatingRepository(store),
		vehicles:    mock.NewVehicleRegistry(store),
		locks:       mock.NewLockStore(),
		cache:       mock.NewRatingCache(),
		publisher:   &recordingPublisher{},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := service.NewEventService(f.publisher, logger)
	limits := service.DefaultSearchLimits

	f.offers = service.NewOfferService(f.offerRepo, f.vehicles, f.cache, events, logger, limits)
	f.bookings = service.NewBookingService(f.bookingRepo, f.offerRepo, f.cache, events, logger, limits)
	f.matching = service.NewMatchingService(f.requestRepo, f.offerRepo, f.bookingRepo, f.vehicles,
		f.locks, time.Second, events, logger, limits)
	f.ratings = service.NewRatingService(f.ratingRepo, f.offerRepo, f.cache, events, logger)

	return f
}

// publishOffer creates an offer through the service with a registered vehicle.
func (f *fixture) publishOffer(t *testing.T, driverID string, price float64, seats int, at time.Time) *domain.Offer {
	t.Helper()

	vehicleID := "vehicle-" + driverID
	f.store.AddVehicle(&domain.Vehicle{ID: vehicleID, DriverID: driverID, Plate: "ABC1D23", Active: true})

	offer, err := f.offers.CreateOffer(context.Background(), service.CreateOfferRequest{
		DriverID:    driverID,
		VehicleID:   vehicleID,
		DepartureAt: at,
		Price:       price,
		Origin:      "Campinas",
		Destination: "Sao Paulo",
		Seats:       seats,
	})
	require.NoError(t, err)
	return offer
}

func (f *fixture) join(t *testing.T, riderID, offerID string) *domain.Booking {
	t.Helper()

	booking, err := f.bookings.Join(context.Background(), riderID, offerID)
	require.NoError(t, err)
	return booking
}

func ptr[T any](v T) *T {
	return &v
}
