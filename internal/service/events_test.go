package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carona/internal/domain"
	"carona/internal/events"
	"carona/internal/service"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

func TestEventService_NilServiceIsNoop(t *testing.T) {
	t.Parallel()

	var s *service.EventService
	assert.NotPanics(t, func() {
		s.OfferCreated(context.Background(), &domain.Offer{ID: "offer-1"})
	})
}

func TestEventService_PublishFailureDoesNotFailOperation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	offer := f.publishOffer(t, "driver-1", 10, 2, departure)
	require.NotNil(t, offer)
	assert.Empty(t, f.publisher.types())
}

func TestEventService_BookingLifecycleEvents(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	offer := f.publishOffer(t, "driver-1", 10, 2, departure)
	f.join(t, "rider-1", offer.ID)
	require.NoError(t, f.bookings.Leave(context.Background(), "rider-1", offer.ID))

	assert.Equal(t, []events.Type{events.OfferCreated, events.BookingCreated, events.BookingCancelled}, f.publisher.types())
}

func TestEventService_EventsCarryOfferKey(t *testing.T) {
	t.Parallel()

	publisher := &recordingPublisher{}
	s := service.NewEventService(publisher, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.BookingCreated(context.Background(), &domain.Booking{ID: "booking-1", OfferID: "offer-1", RiderID: "rider-1"})

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, "offer-1", event.Key)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "rider-1", event.Data["rider_id"])
}
