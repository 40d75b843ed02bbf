package app

import (
	"log/slog"

	"carona/internal/config"
	"carona/internal/events"
)

// NewEventPublisher returns a Kafka publisher when Kafka is enabled and a
// log-only publisher otherwise.
func NewEventPublisher(cfg config.KafkaConfig, logger *slog.Logger) events.Publisher {
	if !cfg.Enabled {
		return events.NewLogPublisher(logger)
	}
	logger.Info("publishing domain events to kafka", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return events.NewKafkaPublisher(cfg.Brokers, cfg.Topic, cfg.WriteTimeout.Duration)
}
