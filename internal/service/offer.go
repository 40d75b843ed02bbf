package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"carona/internal/domain"
	"carona/internal/redis"
	"carona/internal/repository"
)

// OfferService handles the ride offer store.
type OfferService struct {
	offerRepo repository.OfferRepository
	vehicles  repository.VehicleRegistry
	cache     redis.RatingCacheInterface
	events    *EventService
	logger    *slog.Logger
	limits    SearchLimits
}

// NewOfferService creates a new OfferService. vehicles may be nil, in which
// case vehicle ids are stored without checking the registry. cache may be nil.
func NewOfferService(
	offerRepo repository.OfferRepository,
	vehicles repository.VehicleRegistry,
	cache redis.RatingCacheInterface,
	events *EventService,
	logger *slog.Logger,
	limits SearchLimits,
) *OfferService {
	return &OfferService{
		offerRepo: offerRepo,
		vehicles:  vehicles,
		cache:     cache,
		events:    events,
		logger:    logger,
		limits:    limits.normalize(),
	}
}

// CreateOfferRequest contains the parameters for publishing an offer.
type CreateOfferRequest struct {
	DriverID    string
	VehicleID   string
	DepartureAt time.Time
	Price       float64
	Origin      string
	Destination string
	Seats       int
}

// UpdateOfferRequest contains the parameters for changing an offer.
type UpdateOfferRequest struct {
	OfferID  string
	DriverID string
	Patch    domain.OfferPatch
}

// DeleteOfferRequest contains the parameters for removing an offer.
type DeleteOfferRequest struct {
	OfferID  string
	DriverID string
	Enforce  bool // also remove existing bookings
}

// CreateOffer publishes a new offer with no booked seats.
func (s *OfferService) CreateOffer(ctx context.Context, req CreateOfferRequest) (*domain.Offer, error) {
	if err := s.validateCreateRequest(req); err != nil {
		return nil, err
	}

	if err := checkVehicle(ctx, s.vehicles, req.DriverID, req.VehicleID); err != nil {
		return nil, wrapInfra(err)
	}

	now := time.Now().UTC()
	offer := &domain.Offer{
		ID:          uuid.New().String(),
		DriverID:    req.DriverID,
		VehicleID:   req.VehicleID,
		DepartureAt: req.DepartureAt,
		Price:       req.Price,
		Origin:      strings.TrimSpace(req.Origin),
		Destination: strings.TrimSpace(req.Destination),
		Seats:       req.Seats,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.offerRepo.Create(ctx, offer); err != nil {
		err = wrapInfra(err)
		logFailure(ctx, s.logger, "create offer failed", err, slog.String("driver_id", req.DriverID))
		return nil, err
	}

	s.logger.InfoContext(ctx, "offer created",
		slog.String("offer_id", offer.ID),
		slog.String("driver_id", offer.DriverID),
		slog.Int("seats", offer.Seats),
	)
	s.events.OfferCreated(ctx, offer)

	return offer, nil
}

// GetOffer retrieves an offer with its booked seat count.
func (s *OfferService) GetOffer(ctx context.Context, offerID string) (*domain.Offer, error) {
	if offerID == "" {
		return nil, ErrInvalidOfferID
	}

	offer, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, wrapInfra(err)
	}
	return offer, nil
}

// UpdateOffer applies the non-nil fields of the patch. Only the offer's
// driver may update it, and the seat count can never drop below the
// number of booked seats.
func (s *OfferService) UpdateOffer(ctx context.Context, req UpdateOfferRequest) (*domain.Offer, error) {
	if req.OfferID == "" {
		return nil, ErrInvalidOfferID
	}
	if req.DriverID == "" {
		return nil, ErrInvalidDriverID
	}
	if err := validatePatch(req.Patch); err != nil {
		return nil, err
	}

	if _, err := s.ownedOffer(ctx, req.OfferID, req.DriverID); err != nil {
		return nil, err
	}

	if req.Patch.VehicleID != nil {
		if err := checkVehicle(ctx, s.vehicles, req.DriverID, *req.Patch.VehicleID); err != nil {
			return nil, wrapInfra(err)
		}
	}

	offer, err := s.offerRepo.Update(ctx, req.OfferID, req.Patch)
	if err != nil {
		err = wrapInfra(err)
		logFailure(ctx, s.logger, "update offer failed", err, slog.String("offer_id", req.OfferID))
		return nil, err
	}

	s.logger.InfoContext(ctx, "offer updated", slog.String("offer_id", offer.ID))
	s.events.OfferUpdated(ctx, offer)

	return offer, nil
}

// DeleteOffer removes an offer. An offer with bookings is only removed when
// Enforce is set, and then its bookings are removed with it.
func (s *OfferService) DeleteOffer(ctx context.Context, req DeleteOfferRequest) error {
	if req.OfferID == "" {
		return ErrInvalidOfferID
	}
	if req.DriverID == "" {
		return ErrInvalidDriverID
	}

	offer, err := s.ownedOffer(ctx, req.OfferID, req.DriverID)
	if err != nil {
		return err
	}

	riderIDs, err := s.offerRepo.Delete(ctx, req.OfferID, req.Enforce)
	if err != nil {
		err = wrapInfra(err)
		logFailure(ctx, s.logger, "delete offer failed", err,
			slog.String("offer_id", req.OfferID),
			slog.Bool("enforce", req.Enforce),
		)
		return err
	}

	s.logger.InfoContext(ctx, "offer deleted",
		slog.String("offer_id", req.OfferID),
		slog.Bool("enforce", req.Enforce),
		slog.Int("bookings_removed", len(riderIDs)),
	)
	if len(riderIDs) > 0 {
		invalidateRating(ctx, s.cache, s.logger, offer.DriverID, domain.RoleDriver)
		for _, riderID := range riderIDs {
			invalidateRating(ctx, s.cache, s.logger, riderID, domain.RolePassenger)
		}
	}
	s.events.OfferDeleted(ctx, offer, req.Enforce)

	return nil
}

// SearchOffers returns one page of offers matching filter.
func (s *OfferService) SearchOffers(ctx context.Context, filter domain.OfferFilter) (*domain.OfferPage, error) {
	if filter.DepartureFrom != nil && filter.DepartureTo != nil && filter.DepartureFrom.After(*filter.DepartureTo) {
		return nil, ErrInvalidTimeWindow
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return nil, ErrInvalidPriceRange
	}

	switch filter.OrderBy {
	case "":
		filter.OrderBy = domain.OfferOrderDeparture
	case domain.OfferOrderDeparture, domain.OfferOrderPrice, domain.OfferOrderCreated:
	default:
		return nil, ErrInvalidOrderBy
	}

	if filter.MinSeats != nil && *filter.MinSeats < 1 {
		one := 1
		filter.MinSeats = &one
	}

	limit, offset, err := s.limits.resolve(filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	filter.Limit, filter.Offset = limit, offset
	filter.Origin = strings.TrimSpace(filter.Origin)
	filter.Destination = strings.TrimSpace(filter.Destination)

	offers, err := s.offerRepo.Search(ctx, filter)
	if err != nil {
		err = wrapInfra(err)
		logFailure(ctx, s.logger, "search offers failed", err)
		return nil, err
	}

	return &domain.OfferPage{Offers: offers, Limit: limit, Offset: offset}, nil
}

// ownedOffer loads an offer and checks that driverID drives it.
func (s *OfferService) ownedOffer(ctx context.Context, offerID, driverID string) (*domain.Offer, error) {
	offer, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, wrapInfra(err)
	}
	if offer.DriverID != driverID {
		return nil, ErrNotOfferOwner
	}
	return offer, nil
}

// validateCreateRequest validates the create offer request.
func (s *OfferService) validateCreateRequest(req CreateOfferRequest) error {
	if req.DriverID == "" {
		return ErrInvalidDriverID
	}
	if req.VehicleID == "" {
		return ErrInvalidVehicleID
	}
	if req.DepartureAt.IsZero() {
		return ErrInvalidDeparture
	}
	if !isValidPrice(req.Price) {
		return ErrInvalidPrice
	}
	if req.Seats < 1 {
		return ErrInvalidSeats
	}
	if strings.TrimSpace(req.Origin) == "" || strings.TrimSpace(req.Destination) == "" {
		return ErrInvalidRoute
	}
	return nil
}

func validatePatch(patch domain.OfferPatch) error {
	if patch.VehicleID != nil && *patch.VehicleID == "" {
		return ErrInvalidVehicleID
	}
	if patch.DepartureAt != nil && patch.DepartureAt.IsZero() {
		return ErrInvalidDeparture
	}
	if patch.Price != nil && !isValidPrice(*patch.Price) {
		return ErrInvalidPrice
	}
	if patch.Seats != nil && *patch.Seats < 1 {
		return ErrInvalidSeats
	}
	if patch.Origin != nil && strings.TrimSpace(*patch.Origin) == "" {
		return ErrInvalidRoute
	}
	if patch.Destination != nil && strings.TrimSpace(*patch.Destination) == "" {
		return ErrInvalidRoute
	}
	return nil
}

// checkVehicle verifies against the registry that vehicleID is an active
// vehicle of driverID. A nil registry accepts any vehicle.
func checkVehicle(ctx context.Context, vehicles repository.VehicleRegistry, driverID, vehicleID string) error {
	if vehicles == nil {
		return nil
	}

	vehicle, err := vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.ErrVehicleNotFound
		}
		return err
	}
	if vehicle.DriverID != driverID || !vehicle.Active {
		return repository.ErrVehicleNotFound
	}
	return nil
}

func isValidPrice(price float64) bool {
	return price >= 0 && !math.IsNaN(price) && !math.IsInf(price, 0)
}
