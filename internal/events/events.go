package events

import (
	"context"
	"time"
)

// Type names a domain event.
type Type string

const (
	OfferCreated     Type = "offer.created"
	OfferUpdated     Type = "offer.updated"
	OfferDeleted     Type = "offer.deleted"
	BookingCreated   Type = "booking.created"
	BookingCancelled Type = "booking.cancelled"
	RequestCreated   Type = "request.created"
	RequestMatched   Type = "request.matched"
	RatingSubmitted  Type = "rating.submitted"
)

// Event is a domain event published after a state change commits.
type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	Key        string         `json:"key"` // partitioning key, usually the offer id
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data"`
}

// Publisher delivers domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
