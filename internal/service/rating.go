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

// Score bounds.
const (
	MinScore = 1
	MaxScore = 5
)

// RatingService handles the rating ledger.
type RatingService struct {
	ratingRepo repository.RatingRepository
	offerRepo  repository.OfferRepository
	cache      redis.RatingCacheInterface
	events     *EventService
	logger     *slog.Logger
}

// NewRatingService creates a new RatingService. cache may be nil.
func NewRatingService(
	ratingRepo repository.RatingRepository,
	offerRepo repository.OfferRepository,
	cache redis.RatingCacheInterface,
	events *EventService,
	logger *slog.Logger,
) *RatingService {
	return &RatingService{
		ratingRepo: ratingRepo,
		offerRepo:  offerRepo,
		cache:      cache,
		events:     events,
		logger:     logger,
	}
}

// RateDriverInput contains a rider's rating of the driver of an offer they booked.
type RateDriverInput struct {
	OfferID  string
	RiderID  string
	DriverID string // optional; must match the offer's driver when set
	Score    int
	Comment  *string
}

// RatePassengerInput contains a driver's rating of one passenger of their offer.
type RatePassengerInput struct {
	OfferID     string
	DriverID    string
	PassengerID string
	Score       int
	Comment     *string
}

// RateDriver records the rider's rating of the driver. Each booking can
// rate its driver once.
func (s *RatingService) RateDriver(ctx context.Context, in RateDriverInput) (*domain.Booking, error) {
	if err := validateScore(in.Score); err != nil {
		return nil, err
	}
	if in.OfferID == "" {
		return nil, ErrInvalidOfferID
	}
	if in.RiderID == "" {
		return nil, ErrInvalidRiderID
	}

	offer, err := s.offerRepo.GetByID(ctx, in.OfferID)
	if err != nil {
		return nil, wrapInfra(err)
	}
	if in.DriverID != "" && in.DriverID != offer.DriverID {
		return nil, ErrDriverNotOnOffer
	}

	booking, err := s.ratingRepo.RateDriver(ctx, in.RiderID, in.OfferID, domain.Rating{Score: in.Score, Comment: in.Comment})
	observability.RatingsTotal.WithLabelValues(string(domain.RoleDriver), ratingResult(err)).Inc()
	if err != nil {
		err = wrapInfra(err)
		logFailure(ctx, s.logger, "rate driver failed", err,
			slog.String("offer_id", in.OfferID),
			slog.String("rider_id", in.RiderID),
		)
		return nil, err
	}

	s.invalidate(ctx, offer.DriverID, domain.RoleDriver)
	s.logger.InfoContext(ctx, "driver rated",
		slog.String("offer_id", in.OfferID),
		slog.String("driver_id", offer.DriverID),
		slog.Int("score", in.Score),
	)
	s.events.RatingSubmitted(ctx, booking, domain.RoleDriver, offer.DriverID, in.Score)

	return booking, nil
}

// RatePassenger records the driver's rating of a passenger. Only the
// offer's driver may rate its passengers, each once.
func (s *RatingService) RatePassenger(ctx context.Context, in RatePassengerInput) (*domain.Booking, error) {
	if err := validateScore(in.Score); err != nil {
		return nil, err
	}
	if in.OfferID == "" {
		return nil, ErrInvalidOfferID
	}
	if in.DriverID == "" {
		return nil, ErrInvalidDriverID
	}
	if in.PassengerID == "" {
		return nil, ErrInvalidRiderID
	}

	offer, err := s.offerRepo.GetByID(ctx, in.OfferID)
	if err != nil {
		return nil, wrapInfra(err)
	}
	if offer.DriverID != in.DriverID {
		return nil, ErrNotOfferOwner
	}

	booking, err := s.ratingRepo.RatePassenger(ctx, in.PassengerID, in.OfferID, domain.Rating{Score: in.Score, Comment: in.Comment})
	observability.RatingsTotal.WithLabelValues(string(domain.RolePassenger), ratingResult(err)).Inc()
	if err != nil {
		err = wrapInfra(err)
		logFailure(ctx, s.logger, "rate passenger failed", err,
			slog.String("offer_id", in.OfferID),
			slog.String("passenger_id", in.PassengerID),
		)
		return nil, err
	}

	s.invalidate(ctx, in.PassengerID, domain.RolePassenger)
	s.logger.InfoContext(ctx, "passenger rated",
		slog.String("offer_id", in.OfferID),
		slog.String("passenger_id", in.PassengerID),
		slog.Int("score", in.Score),
	)
	s.events.RatingSubmitted(ctx, booking, domain.RolePassenger, in.PassengerID, in.Score)

	return booking, nil
}

// Average returns the mean rating a person received in role. The summary's
// Average is nil when the person has no ratings yet.
func (s *RatingService) Average(ctx context.Context, personID string, role domain.Role) (*domain.RatingSummary, error) {
	if personID == "" {
		return nil, ErrInvalidPersonID
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	if s.cache != nil {
		cached, err := s.cache.GetRatingSummary(ctx, personID, role)
		if err != nil {
			s.logger.WarnContext(ctx, "rating cache read failed", slog.String("error", err.Error()))
		} else if cached != nil {
			return cached, nil
		}
	}

	summary, err := s.ratingRepo.Summary(ctx, personID, role)
	if err != nil {
		err = wrapInfra(err)
		logFailure(ctx, s.logger, "rating summary failed", err,
			slog.String("person_id", personID),
			slog.String("role", string(role)),
		)
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetRatingSummary(ctx, summary); err != nil {
			s.logger.WarnContext(ctx, "rating cache write failed", slog.String("error", err.Error()))
		}
	}

	return summary, nil
}

func (s *RatingService) invalidate(ctx context.Context, personID string, role domain.Role) {
	invalidateRating(ctx, s.cache, s.logger, personID, role)
}

// invalidateRating drops a cached rating summary. Failures are logged; the
// entry then expires with its TTL.
func invalidateRating(ctx context.Context, cache redis.RatingCacheInterface, logger *slog.Logger, personID string, role domain.Role) {
	if cache == nil {
		return
	}
	if err := cache.InvalidateRatingSummary(ctx, personID, role); err != nil {
		logger.WarnContext(ctx, "rating cache invalidation failed",
			slog.String("person_id", personID),
			slog.String("role", string(role)),
			slog.String("error", err.Error()),
		)
	}
}

func validateScore(score int) error {
	if score < MinScore || score > MaxScore {
		return ErrInvalidScore
	}
	return nil
}

func ratingResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, repository.ErrAlreadyRated):
		return "already_rated"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
