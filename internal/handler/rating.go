package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carona/internal/domain"
	"carona/internal/middleware"
	"carona/internal/service"
)

// RatingHandler handles HTTP requests for ratings.
type RatingHandler struct {
	ratingService *service.RatingService
}

// NewRatingHandler creates a new RatingHandler.
func NewRatingHandler(ratingService *service.RatingService) *RatingHandler {
	return &RatingHandler{ratingService: ratingService}
}

// RateDriverBody is the HTTP request body for rating the driver of an offer.
type RateDriverBody struct {
	DriverID string  `json:"driver_id,omitempty"`
	Score    int     `json:"score"`
	Comment  *string `json:"comment,omitempty"`
}

// RatePassengerBody is the HTTP request body for rating a passenger.
type RatePassengerBody struct {
	Score   int     `json:"score"`
	Comment *string `json:"comment,omitempty"`
}

// RatingSummaryResponse is the HTTP representation of a person's average rating.
type RatingSummaryResponse struct {
	PersonID string   `json:"person_id"`
	Role     string   `json:"role"`
	Average  *float64 `json:"average"` // null when there are no ratings yet
	Count    int      `json:"count"`
}

// RateDriver handles POST /v1/offers/:id/ratings/driver
func (h *RatingHandler) RateDriver(c *gin.Context) {
	var body RateDriverBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	booking, err := h.ratingService.RateDriver(c.Request.Context(), service.RateDriverInput{
		OfferID:  c.Param("id"),
		RiderID:  middleware.PrincipalID(c),
		DriverID: body.DriverID,
		Score:    body.Score,
		Comment:  body.Comment,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// RatePassenger handles POST /v1/offers/:id/ratings/passengers/:passengerId
func (h *RatingHandler) RatePassenger(c *gin.Context) {
	var body RatePassengerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	booking, err := h.ratingService.RatePassenger(c.Request.Context(), service.RatePassengerInput{
		OfferID:     c.Param("id"),
		DriverID:    middleware.PrincipalID(c),
		PassengerID: c.Param("passengerId"),
		Score:       body.Score,
		Comment:     body.Comment,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// Average handles GET /v1/users/:id/rating?role=driver|passenger
func (h *RatingHandler) Average(c *gin.Context) {
	role := domain.Role(c.DefaultQuery("role", string(domain.RoleDriver)))

	summary, err := h.ratingService.Average(c.Request.Context(), c.Param("id"), role)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, RatingSummaryResponse{
		PersonID: summary.PersonID,
		Role:     string(summary.Role),
		Average:  summary.Average,
		Count:    summary.Count,
	})
}
