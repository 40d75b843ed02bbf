package events

import (
	"context"
	"log/slog"
)

// LogPublisher writes events to the structured log. It is used when no
// broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	p.logger.InfoContext(ctx, "domain event",
		slog.String("event_id", event.ID),
		slog.String("type", string(event.Type)),
		slog.String("key", event.Key),
		slog.Any("data", event.Data),
	)
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error { return nil }
