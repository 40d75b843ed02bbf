package app

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"carona/internal/handler"
	"carona/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	OfferHandler   *handler.OfferHandler
	BookingHandler *handler.BookingHandler
	RequestHandler *handler.RequestHandler
	RatingHandler  *handler.RatingHandler
	Authenticator  *middleware.Authenticator
	RedisClient    *redis.Client
	NewRelicApp    *newrelic.Application
	Registry       *prometheus.Registry
	Logger         *slog.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	if deps.Logger != nil {
		router.Use(middleware.Logging(deps.Logger))
	}
	router.Use(middleware.CORSMiddleware())

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	if deps.Registry != nil {
		router.Use(middleware.NewHTTPMetrics(deps.Registry).Middleware())
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	v1.Use(deps.Authenticator.Middleware())
	v1.Use(middleware.NewIdempotency(deps.RedisClient, middleware.DefaultIdempotencyTTL, deps.Logger).Middleware())
	{
		// Offer routes.
		offers := v1.Group("/offers")
		{
			offers.POST("", deps.OfferHandler.CreateOffer)
			offers.GET("", deps.OfferHandler.SearchOffers)
			offers.GET("/:id", deps.OfferHandler.GetOffer)
			offers.PATCH("/:id", deps.OfferHandler.UpdateOffer)
			offers.DELETE("/:id", deps.OfferHandler.DeleteOffer)

			// Booking routes.
			offers.POST("/:id/join", deps.BookingHandler.Join)
			offers.GET("/:id/join", deps.BookingHandler.GetMine)
			offers.DELETE("/:id/join", deps.BookingHandler.Leave)
			offers.GET("/:id/bookings", deps.BookingHandler.ListForOffer)

			// Rating routes.
			offers.POST("/:id/ratings/driver", deps.RatingHandler.RateDriver)
			offers.POST("/:id/ratings/passengers/:passengerId", deps.RatingHandler.RatePassenger)
		}

		v1.GET("/bookings", deps.BookingHandler.ListMine)
		v1.GET("/users/:id/rating", deps.RatingHandler.Average)

		// Ride request routes.
		requests := v1.Group("/requests")
		{
			requests.POST("", deps.RequestHandler.CreateRequest)
			requests.GET("", deps.RequestHandler.SearchRequests)
			requests.GET("/:id", deps.RequestHandler.GetRequest)
			requests.PATCH("/:id", deps.RequestHandler.UpdateRequest)
			requests.DELETE("/:id", deps.RequestHandler.DeleteRequest)
			requests.POST("/:id/match", deps.RequestHandler.MatchRequest)
			requests.POST("/:id/offer", deps.RequestHandler.ConvertToOffer)
		}
	}

	return router
}
