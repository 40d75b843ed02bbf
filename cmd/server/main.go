package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"carona/internal/app"
	"carona/internal/config"
	"carona/internal/events"
	"carona/internal/handler"
	"carona/internal/middleware"
	"carona/internal/observability"
	internalRedis "carona/internal/redis"
	"carona/internal/repository"
	"carona/internal/repository/postgres"
	"carona/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		var err error
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", "error", err)
		} else {
			logger.Info("New Relic enabled", "app", cfg.NewRelic.AppName)
			defer nrApp.Shutdown(5 * time.Second)
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL", "host", cfg.Database.Host, "database", cfg.Database.DBName)

	if cfg.Database.RunMigrations {
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		logger.Info("database schema applied")
	}

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	logger.Info("connected to Redis", "addr", cfg.Redis.Addr)

	publisher := app.NewEventPublisher(cfg.Kafka, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("failed to close event publisher", "error", err)
		}
	}()

	var registry *prometheus.Registry
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		if err := observability.Register(registry); err != nil {
			return err
		}
	}

	server := wireServer(db, redisClient, publisher, nrApp, registry, logger, cfg)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down server", "signal", sig.String())
	case err := <-errCh:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server exited")
	return nil
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	publisher events.Publisher,
	nrApp *newrelic.Application,
	registry *prometheus.Registry,
	logger *slog.Logger,
	cfg *config.Config,
) *http.Server {
	limits := service.SearchLimits{Default: cfg.Search.DefaultLimit, Max: cfg.Search.MaxLimit}

	// Initialize Redis stores.
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient, cfg.Rating.CacheTTL.Duration)

	// Initialize repositories.
	txRunner := postgres.NewTxRunner(db, cfg.Booking.MaxTxRetries, cfg.Booking.RetryBackoff.Duration)
	txRunner.OnRetry(observability.TxRetriesTotal.Inc)

	offerRepo := postgres.NewOfferRepository(db, txRunner)
	bookingRepo := postgres.NewBookingRepository(db, txRunner)
	requestRepo := postgres.NewRequestRepository(db, txRunner)
	ratingRepo := postgres.NewRatingRepository(db)

	var vehicleRepo repository.VehicleRegistry
	if cfg.Vehicles.VerifyRegistry {
		vehicleRepo = postgres.NewVehicleRepository(db)
	} else {
		logger.Warn("vehicle registry check disabled; offers store vehicle ids unchecked")
	}

	// Initialize services.
	eventService := service.NewEventService(publisher, logger)
	offerService := service.NewOfferService(offerRepo, vehicleRepo, cacheStore, eventService, logger, limits)
	bookingService := service.NewBookingService(bookingRepo, offerRepo, cacheStore, eventService, logger, limits)
	matchingService := service.NewMatchingService(
		requestRepo, offerRepo, bookingRepo, vehicleRepo,
		lockStore, cfg.Matching.LockTTL.Duration,
		eventService, logger, limits,
	)
	ratingService := service.NewRatingService(ratingRepo, offerRepo, cacheStore, eventService, logger)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		OfferHandler:   handler.NewOfferHandler(offerService),
		BookingHandler: handler.NewBookingHandler(bookingService),
		RequestHandler: handler.NewRequestHandler(matchingService),
		RatingHandler:  handler.NewRatingHandler(ratingService),
		Authenticator:  middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
		Registry:       registry,
		Logger:         logger,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}
}
