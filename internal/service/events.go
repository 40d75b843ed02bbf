package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"carona/internal/domain"
	"carona/internal/events"
)

// EventService turns committed state changes into domain events.
// Delivery failures are logged and never fail the operation that caused them.
type EventService struct {
	publisher events.Publisher
	logger    *slog.Logger
}

// NewEventService creates a new EventService. A nil publisher disables publishing.
func NewEventService(publisher events.Publisher, logger *slog.Logger) *EventService {
	return &EventService{publisher: publisher, logger: logger}
}

// OfferCreated publishes offer.created.
func (s *EventService) OfferCreated(ctx context.Context, offer *domain.Offer) {
	s.send(ctx, events.OfferCreated, offer.ID, offerData(offer))
}

// OfferUpdated publishes offer.updated.
func (s *EventService) OfferUpdated(ctx context.Context, offer *domain.Offer) {
	s.send(ctx, events.OfferUpdated, offer.ID, offerData(offer))
}

// OfferDeleted publishes offer.deleted.
func (s *EventService) OfferDeleted(ctx context.Context, offer *domain.Offer, enforced bool) {
	data := offerData(offer)
	data["enforced"] = enforced
	s.send(ctx, events.OfferDeleted, offer.ID, data)
}

// BookingCreated publishes booking.created.
func (s *EventService) BookingCreated(ctx context.Context, booking *domain.Booking) {
	s.send(ctx, events.BookingCreated, booking.OfferID, map[string]any{
		"booking_id": booking.ID,
		"offer_id":   booking.OfferID,
		"rider_id":   booking.RiderID,
	})
}

// BookingCancelled publishes booking.cancelled.
func (s *EventService) BookingCancelled(ctx context.Context, riderID, offerID string) {
	s.send(ctx, events.BookingCancelled, offerID, map[string]any{
		"offer_id": offerID,
		"rider_id": riderID,
	})
}

// RequestCreated publishes request.created.
func (s *EventService) RequestCreated(ctx context.Context, request *domain.RideRequest) {
	s.send(ctx, events.RequestCreated, request.ID, map[string]any{
		"request_id":         request.ID,
		"requester_id":       request.RequesterID,
		"earliest_departure": request.EarliestDeparture,
		"latest_departure":   request.LatestDeparture,
		"max_price":          request.MaxPrice,
	})
}

// RequestMatched publishes request.matched.
func (s *EventService) RequestMatched(ctx context.Context, request *domain.RideRequest, offer *domain.Offer) {
	s.send(ctx, events.RequestMatched, offer.ID, map[string]any{
		"request_id":   request.ID,
		"requester_id": request.RequesterID,
		"offer_id":     offer.ID,
		"driver_id":    offer.DriverID,
		"price":        offer.Price,
	})
}

// RatingSubmitted publishes rating.submitted.
func (s *EventService) RatingSubmitted(ctx context.Context, booking *domain.Booking, role domain.Role, ratedID string, score int) {
	s.send(ctx, events.RatingSubmitted, booking.OfferID, map[string]any{
		"booking_id": booking.ID,
		"offer_id":   booking.OfferID,
		"role":       string(role),
		"rated_id":   ratedID,
		"score":      score,
	})
}

func (s *EventService) send(ctx context.Context, eventType events.Type, key string, data map[string]any) {
	if s == nil || s.publisher == nil {
		return
	}

	event := events.Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event",
			slog.String("type", string(eventType)),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

func offerData(offer *domain.Offer) map[string]any {
	return map[string]any{
		"offer_id":        offer.ID,
		"driver_id":       offer.DriverID,
		"departure_at":    offer.DepartureAt,
		"price":           offer.Price,
		"seats":           offer.Seats,
		"remaining_seats": offer.RemainingSeats(),
	}
}
