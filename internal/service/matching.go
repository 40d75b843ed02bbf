package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"carona/internal/domain"
	"carona/internal/observability"
	"carona/internal/redis"
	"carona/internal/repository"
)

// DefaultMatchLockTTL bounds how long a single match attempt may hold a request.
const DefaultMatchLockTTL = 10 * time.Second

// MatchingService handles ride requests and matches them against offers.
type MatchingService struct {
	requestRepo repository.RequestRepository
	offerRepo   repository.OfferRepository
	bookingRepo repository.BookingRepository
	vehicles    repository.VehicleRegistry
	lockStore   redis.LockStoreInterface
	lockTTL     time.Duration
	events      *EventService
	logger      *slog.Logger
	limits      SearchLimits
}

// NewMatchingService creates a new MatchingService. vehicles and lockStore may be nil.
func NewMatchingService(
	requestRepo repository.RequestRepository,
	offerRepo repository.OfferRepository,
	bookingRepo repository.BookingRepository,
	vehicles repository.VehicleRegistry,
	lockStore redis.LockStoreInterface,
	lockTTL time.Duration,
	events *EventService,
	logger *slog.Logger,
	limits SearchLimits,
) *MatchingService {
	if lockTTL <= 0 {
		lockTTL = DefaultMatchLockTTL
	}
	return &MatchingService{
		requestRepo: requestRepo,
		offerRepo:   offerRepo,
		bookingRepo: bookingRepo,
		vehicles:    vehicles,
		lockStore:   lockStore,
		lockTTL:     lockTTL,
		events:      events,
		logger:      logger,
		limits:      limits.normalize(),
	}
}

// Keywords restrict matching to offers whose route contains them. Blank
// fields do not filter.
type Keywords struct {
	Origin      string
	Destination string
}

// CreateRequestInput contains the parameters for creating a ride request.
type CreateRequestInput struct {
	RequesterID       string
	EarliestDeparture time.Time
	LatestDeparture   time.Time
	MaxPrice          float64
	Origin            string
	Destination       string
	AutoMatch         bool
	Keywords          *Keywords
}

// MatchRequestInput contains the parameters for retrying a match.
type MatchRequestInput struct {
	RequestID   string
	RequesterID string
	Keywords    *Keywords
}

// MatchResult describes a request and the outcome of its match attempt.
// Booking and Offer are set only when Matched is true.
type MatchResult struct {
	Request *domain.RideRequest
	Matched bool
	Outcome domain.MatchOutcome
	Booking *domain.Booking
	Offer   *domain.Offer
}

// ConvertRequestInput contains the parameters for a driver answering a request with a new offer.
type ConvertRequestInput struct {
	RequestID   string
	DriverID    string
	VehicleID   string
	DepartureAt time.Time
	Price       float64
	Seats       int
}

// ConvertResult is the offer created for a request and the requester's booking on it.
type ConvertResult struct {
	Request *domain.RideRequest
	Offer   *domain.Offer
	Booking *domain.Booking
}

// UpdateRequestInput contains the parameters for changing an open request.
type UpdateRequestInput struct {
	RequestID   string
	RequesterID string
	Patch       domain.RequestPatch
}

// CreateRequest stores a ride request and, with AutoMatch, books the
// requester on the cheapest eligible offer. A lost or missing candidate
// leaves the request open and is reported through the outcome. An
// infrastructure failure while matching removes the request again.
func (s *MatchingService) CreateRequest(ctx context.Context, in CreateRequestInput) (*MatchResult, error) {
	if in.RequesterID == "" {
		return nil, ErrInvalidRiderID
	}

	now := time.Now().UTC()
	request := &domain.RideRequest{
		ID:                uuid.New().String(),
		RequesterID:       in.RequesterID,
		EarliestDeparture: in.EarliestDeparture,
		LatestDeparture:   in.LatestDeparture,
		MaxPrice:          in.MaxPrice,
		Origin:            strings.TrimSpace(in.Origin),
		Destination:       strings.TrimSpace(in.Destination),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := validateRequest(request); err != nil {
		return nil, err
	}

	if err := s.requestRepo.Create(ctx, request); err != nil {
		err = wrapInfra(err)
		logFailure(ctx, s.logger, "create ride request failed", err, slog.String("requester_id", in.RequesterID))
		return nil, err
	}
	s.logger.InfoContext(ctx, "ride request created",
		slog.String("request_id", request.ID),
		slog.String("requester_id", request.RequesterID),
	)
	s.events.RequestCreated(ctx, request)

	if !in.AutoMatch {
		return &MatchResult{Request: request, Outcome: domain.MatchOutcomeNotAttempted}, nil
	}

	result, err := s.match(ctx, request, in.Keywords)
	if err != nil {
		if errors.Is(err, domain.ErrInfrastructure) {
			s.discardRequest(ctx, request.ID)
		}
		return nil, err
	}
	return result, nil
}

// MatchRequest runs the matching algorithm again for an open request.
func (s *MatchingService) MatchRequest(ctx context.Context, in MatchRequestInput) (*MatchResult, error) {
	if in.RequestID == "" {
		return nil, ErrInvalidRequestID
	}
	if in.RequesterID == "" {
		return nil, ErrInvalidRiderID
	}

	if s.lockStore != nil {
		token, err := s.lockStore.AcquireRequestLock(ctx, in.RequestID, s.lockTTL)
		if err != nil {
			err = wrapInfra(err)
			logFailure(ctx, s.logger, "acquire request lock failed", err, slog.String("request_id", in.RequestID))
			return nil, err
		}
		if token == "" {
			return nil, ErrMatchInProgress
		}
		defer func() {
			if err := s.lockStore.ReleaseRequestLock(context.WithoutCancel(ctx), in.RequestID, token); err != nil {
				s.logger.WarnContext(ctx, "release request lock failed",
					slog.String("request_id", in.RequestID),
					slog.String("error", err.Error()),
				)
			}
		}()
	}

	request, err := s.ownedRequest(ctx, in.RequestID, in.RequesterID)
	if err != nil {
		return nil, err
	}
	if request.Status() == domain.RequestStatusMatched {
		return nil, repository.ErrRequestAlreadyMatched
	}

	return s.match(ctx, request, in.Keywords)
}

// match looks up the cheapest eligible offer and books the requester on
// it, linking the request in the same transaction. It never retries.
func (s *MatchingService) match(ctx context.Context, request *domain.RideRequest, keywords *Keywords) (*MatchResult, error) {
	start := time.Now()
	defer func() {
		observability.MatchLatency.Observe(time.Since(start).Seconds())
	}()

	criteria := domain.MatchCriteria{
		RequesterID:       request.RequesterID,
		EarliestDeparture: request.EarliestDeparture,
		LatestDeparture:   request.LatestDeparture,
		MaxPrice:          request.MaxPrice,
	}
	if keywords != nil {
		criteria.Origin = strings.TrimSpace(keywords.Origin)
		criteria.Destination = strings.TrimSpace(keywords.Destination)
	}

	offer, err := s.offerRepo.FindCheapest(ctx, criteria)
	if err != nil {
		if errors.Is(err, repository.ErrOfferNotFound) {
			return s.unmatched(ctx, request, domain.MatchOutcomeNoCandidate), nil
		}
		err = wrapInfra(err)
		logFailure(ctx, s.logger, "find candidate offer failed", err, slog.String("request_id", request.ID))
		return nil, err
	}

	booking, err := s.bookingRepo.Join(ctx, repository.JoinParams{
		RiderID:   request.RequesterID,
		OfferID:   offer.ID,
		RequestID: request.ID,
	})
	observability.BookingsTotal.WithLabelValues(joinResult(err)).Inc()
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRequestAlreadyMatched):
			return nil, err
		case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrNotFound):
			s.logger.InfoContext(ctx, "candidate offer lost before join",
				slog.String("request_id", request.ID),
				slog.String("offer_id", offer.ID),
				slog.String("reason", err.Error()),
			)
			return s.unmatched(ctx, request, domain.MatchOutcomeCandidateLost), nil
		default:
			err = wrapInfra(err)
			logFailure(ctx, s.logger, "join candidate offer failed", err,
				slog.String("request_id", request.ID),
				slog.String("offer_id", offer.ID),
			)
			return nil, err
		}
	}

	offerID := offer.ID
	request.OfferID = &offerID
	offer.BookedSeats++
	observability.MatchAttemptsTotal.WithLabelValues(string(domain.MatchOutcomeMatched)).Inc()

	s.logger.InfoContext(ctx, "ride request matched",
		slog.String("request_id", request.ID),
		slog.String("offer_id", offer.ID),
		slog.Float64("price", offer.Price),
	)
	s.events.BookingCreated(ctx, booking)
	s.events.RequestMatched(ctx, request, offer)

	return &MatchResult{
		Request: request,
		Matched: true,
		Outcome: domain.MatchOutcomeMatched,
		Booking: booking,
		Offer:   offer,
	}, nil
}

func (s *MatchingService) unmatched(ctx context.Context, request *domain.RideRequest, outcome domain.MatchOutcome) *MatchResult {
	observability.MatchAttemptsTotal.WithLabelValues(string(outcome)).Inc()
	s.logger.InfoContext(ctx, "ride request left open",
		slog.String("request_id", request.ID),
		slog.String("outcome", string(outcome)),
	)
	return &MatchResult{Request: request, Outcome: outcome}
}

// discardRequest removes a request whose match attempt failed on infrastructure.
func (s *MatchingService) discardRequest(ctx context.Context, requestID string) {
	if err := s.requestRepo.Delete(context.WithoutCancel(ctx), requestID); err != nil {
		s.logger.ErrorContext(ctx, "failed to discard ride request after match failure",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
	}
}

// ConvertRequestToOffer lets a driver answer an open request with a new
// offer departing inside the request window. The requester is booked on it.
func (s *MatchingService) ConvertRequestToOffer(ctx context.Context, in ConvertRequestInput) (*ConvertResult, error) {
	if in.RequestID == "" {
		return nil, ErrInvalidRequestID
	}
	if in.DriverID == "" {
		return nil, ErrInvalidDriverID
	}
	if in.VehicleID == "" {
		return nil, ErrInvalidVehicleID
	}
	if in.DepartureAt.IsZero() {
		return nil, ErrInvalidDeparture
	}
	if !isValidPrice(in.Price) {
		return nil, ErrInvalidPrice
	}
	if in.Seats < 1 {
		return nil, ErrInvalidSeats
	}

	request, err := s.requestRepo.GetByID(ctx, in.RequestID)
	if err != nil {
		return nil, wrapInfra(err)
	}
	if request.Status() == domain.RequestStatusMatched {
		return nil, repository.ErrRequestAlreadyMatched
	}
	if request.RequesterID == in.DriverID {
		return nil, repository.ErrOwnOffer
	}
	if !request.Accepts(in.DepartureAt) {
		return nil, ErrDepartureOutsideWindow
	}
	if err := checkVehicle(ctx, s.vehicles, in.DriverID, in.VehicleID); err != nil {
		return nil, wrapInfra(err)
	}

	now := time.Now().UTC()
	result, err := s.requestRepo.Fulfill(ctx, repository.FulfillParams{
		RequestID: request.ID,
		Offer: &domain.Offer{
			ID:          uuid.New().String(),
			DriverID:    in.DriverID,
			VehicleID:   in.VehicleID,
			DepartureAt: in.DepartureAt,
			Price:       in.Price,
			Origin:      request.Origin,
			Destination: request.Destination,
			Seats:       in.Seats,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	})
	if err != nil {
		err = wrapInfra(err)
		logFailure(ctx, s.logger, "convert ride request failed", err,
			slog.String("request_id", in.RequestID),
			slog.String("driver_id", in.DriverID),
		)
		return nil, err
	}

	s.logger.InfoContext(ctx, "ride request converted to offer",
		slog.String("request_id", result.Request.ID),
		slog.String("offer_id", result.Offer.ID),
		slog.String("driver_id", in.DriverID),
	)
	s.events.OfferCreated(ctx, result.Offer)
	s.events.BookingCreated(ctx, result.Booking)
	s.events.RequestMatched(ctx, result.Request, result.Offer)

	return &ConvertResult{Request: result.Request, Offer: result.Offer, Booking: result.Booking}, nil
}

// GetRequest retrieves a ride request.
func (s *MatchingService) GetRequest(ctx context.Context, requestID string) (*domain.RideRequest, error) {
	if requestID == "" {
		return nil, ErrInvalidRequestID
	}

	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, wrapInfra(err)
	}
	return request, nil
}

// UpdateRequest changes an open request owned by the requester.
func (s *MatchingService) UpdateRequest(ctx context.Context, in UpdateRequestInput) (*domain.RideRequest, error) {
	if in.RequestID == "" {
		return nil, ErrInvalidRequestID
	}
	if in.RequesterID == "" {
		return nil, ErrInvalidRiderID
	}

	current, err := s.ownedRequest(ctx, in.RequestID, in.RequesterID)
	if err != nil {
		return nil, err
	}
	if current.Status() == domain.RequestStatusMatched {
		return nil, repository.ErrRequestAlreadyMatched
	}

	merged := in.Patch.Apply(*current)
	if err := validateRequest(&merged); err != nil {
		return nil, err
	}

	request, err := s.requestRepo.Update(ctx, in.RequestID, in.Patch)
	if err != nil {
		err = wrapInfra(err)
		logFailure(ctx, s.logger, "update ride request failed", err, slog.String("request_id", in.RequestID))
		return nil, err
	}

	s.logger.InfoContext(ctx, "ride request updated", slog.String("request_id", request.ID))
	return request, nil
}

// DeleteRequest withdraws a request. A matched request can be deleted too;
// its booking stays until the rider leaves the offer.
func (s *MatchingService) DeleteRequest(ctx context.Context, requestID, requesterID string) error {
	if requestID == "" {
		return ErrInvalidRequestID
	}
	if requesterID == "" {
		return ErrInvalidRiderID
	}

	if _, err := s.ownedRequest(ctx, requestID, requesterID); err != nil {
		return err
	}

	if err := s.requestRepo.Delete(ctx, requestID); err != nil {
		err = wrapInfra(err)
		logFailure(ctx, s.logger, "delete ride request failed", err, slog.String("request_id", requestID))
		return err
	}

	s.logger.InfoContext(ctx, "ride request deleted", slog.String("request_id", requestID))
	return nil
}

// SearchRequests returns one page of requests matching filter.
func (s *MatchingService) SearchRequests(ctx context.Context, filter domain.RequestFilter) (*domain.RequestPage, error) {
	if filter.DepartureFrom != nil && filter.DepartureTo != nil && filter.DepartureFrom.After(*filter.DepartureTo) {
		return nil, ErrInvalidTimeWindow
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return nil, ErrInvalidPriceRange
	}

	switch filter.OrderBy {
	case "":
		filter.OrderBy = domain.RequestOrderEarliest
	case domain.RequestOrderEarliest, domain.RequestOrderLatest, domain.RequestOrderPrice, domain.RequestOrderCreated:
	default:
		return nil, ErrInvalidOrderBy
	}

	limit, offset, err := s.limits.resolve(filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	filter.Limit, filter.Offset = limit, offset

	requests, err := s.requestRepo.Search(ctx, filter)
	if err != nil {
		err = wrapInfra(err)
		logFailure(ctx, s.logger, "search ride requests failed", err)
		return nil, err
	}

	return &domain.RequestPage{Requests: requests, Limit: limit, Offset: offset}, nil
}

func (s *MatchingService) ownedRequest(ctx context.Context, requestID, requesterID string) (*domain.RideRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, wrapInfra(err)
	}
	if request.RequesterID != requesterID {
		return nil, ErrNotRequestOwner
	}
	return request, nil
}

func validateRequest(request *domain.RideRequest) error {
	if request.EarliestDeparture.IsZero() || request.LatestDeparture.IsZero() {
		return ErrInvalidTimeWindow
	}
	if request.EarliestDeparture.After(request.LatestDeparture) {
		return ErrInvalidTimeWindow
	}
	if !isValidPrice(request.MaxPrice) {
		return ErrInvalidPrice
	}
	if strings.TrimSpace(request.Origin) == "" || strings.TrimSpace(request.Destination) == "" {
		return ErrInvalidRoute
	}
	return nil
}
