package service

import (
	"context"
	"errors"
	"log/slog"

	"carona/internal/domain"
	"carona/internal/observability"
	"carona/internal/redis"
	"carona/internal/repository"
)

// BookingService handles the booking ledger.
type BookingService struct {
	bookingRepo repository.BookingRepository
	offerRepo   repository.OfferRepository
	cache       redis.RatingCacheInterface
	events      *EventService
	logger      *slog.Logger
	limits      SearchLimits
}

// NewBookingService creates a new BookingService. cache may be nil.
func NewBookingService(
	bookingRepo repository.BookingRepository,
	offerRepo repository.OfferRepository,
	cache redis.RatingCacheInterface,
	events *EventService,
	logger *slog.Logger,
	limits SearchLimits,
) *BookingService {
	return &BookingService{
		bookingRepo: bookingRepo,
		offerRepo:   offerRepo,
		cache:       cache,
		events:      events,
		logger:      logger,
		limits:      limits.normalize(),
	}
}

// Join reserves one seat on an offer for a rider.
func (s *BookingService) Join(ctx context.Context, riderID, offerID string) (*domain.Booking, error) {
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}
	if offerID == "" {
		return nil, ErrInvalidOfferID
	}

	booking, err := s.bookingRepo.Join(ctx, repository.JoinParams{RiderID: riderID, OfferID: offerID})
	observability.BookingsTotal.WithLabelValues(joinResult(err)).Inc()
	if err != nil {
		err = wrapInfra(err)
		logFailure(ctx, s.logger, "join offer failed", err,
			slog.String("rider_id", riderID),
			slog.String("offer_id", offerID),
		)
		return nil, err
	}

	s.logger.InfoContext(ctx, "rider joined offer",
		slog.String("booking_id", booking.ID),
		slog.String("rider_id", riderID),
		slog.String("offer_id", offerID),
	)
	s.events.BookingCreated(ctx, booking)

	return booking, nil
}

// Leave cancels a rider's booking and frees the seat. Ratings stored on
// the booking are discarded with it.
func (s *BookingService) Leave(ctx context.Context, riderID, offerID string) error {
	if riderID == "" {
		return ErrInvalidRiderID
	}
	if offerID == "" {
		return ErrInvalidOfferID
	}

	if err := s.bookingRepo.Leave(ctx, riderID, offerID); err != nil {
		err = wrapInfra(err)
		logFailure(ctx, s.logger, "leave offer failed", err,
			slog.String("rider_id", riderID),
			slog.String("offer_id", offerID),
		)
		return err
	}

	s.logger.InfoContext(ctx, "rider left offer",
		slog.String("rider_id", riderID),
		slog.String("offer_id", offerID),
	)
	s.forgetRatings(ctx, riderID, offerID)
	s.events.BookingCancelled(ctx, riderID, offerID)

	return nil
}

// Get retrieves the booking of a rider on an offer.
func (s *BookingService) Get(ctx context.Context, riderID, offerID string) (*domain.Booking, error) {
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}
	if offerID == "" {
		return nil, ErrInvalidOfferID
	}

	booking, err := s.bookingRepo.Get(ctx, riderID, offerID)
	if err != nil {
		return nil, wrapInfra(err)
	}
	return booking, nil
}

// ListForRider lists the bookings held by a rider.
func (s *BookingService) ListForRider(ctx context.Context, riderID string, limit, offset int) ([]*domain.Booking, error) {
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}
	return s.list(ctx, domain.BookingFilter{RiderID: riderID, Limit: limit, Offset: offset})
}

// ListForOffer lists the bookings on an offer. Only the offer's driver may see them.
func (s *BookingService) ListForOffer(ctx context.Context, offerID, driverID string, limit, offset int) ([]*domain.Booking, error) {
	if offerID == "" {
		return nil, ErrInvalidOfferID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	offer, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, wrapInfra(err)
	}
	if offer.DriverID != driverID {
		return nil, ErrNotOfferOwner
	}

	return s.list(ctx, domain.BookingFilter{OfferID: offerID, Limit: limit, Offset: offset})
}

func (s *BookingService) list(ctx context.Context, filter domain.BookingFilter) ([]*domain.Booking, error) {
	limit, offset, err := s.limits.resolve(filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	filter.Limit, filter.Offset = limit, offset

	bookings, err := s.bookingRepo.List(ctx, filter)
	if err != nil {
		err = wrapInfra(err)
		logFailure(ctx, s.logger, "list bookings failed", err)
		return nil, err
	}
	return bookings, nil
}

func joinResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, repository.ErrRideFull):
		return "ride_full"
	case errors.Is(err, repository.ErrAlreadyJoined):
		return "already_joined"
	case errors.Is(err, repository.ErrOwnOffer):
		return "own_offer"
	case errors.Is(err, repository.ErrRequestAlreadyMatched):
		return "request_matched"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// forgetRatings drops the cached summaries that may include the ratings
// discarded with a rider's booking.
func (s *BookingService) forgetRatings(ctx context.Context, riderID, offerID string) {
	if s.cache == nil {
		return
	}

	invalidateRating(ctx, s.cache, s.logger, riderID, domain.RolePassenger)

	offer, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		s.logger.WarnContext(ctx, "offer lookup for rating cache invalidation failed",
			slog.String("offer_id", offerID),
			slog.String("error", err.Error()),
		)
		return
	}
	invalidateRating(ctx, s.cache, s.logger, offer.DriverID, domain.RoleDriver)
}
