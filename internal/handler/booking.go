package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"carona/internal/domain"
	"carona/internal/middleware"
	"carona/internal/service"
)

// BookingHandler handles HTTP requests for seat bookings.
type BookingHandler struct {
	bookingService *service.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookingService *service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

// BookingResponse is the HTTP representation of a booking.
type BookingResponse struct {
	ID               string    `json:"id"`
	RiderID          string    `json:"rider_id"`
	OfferID          string    `json:"offer_id"`
	DriverScore      *int      `json:"driver_score,omitempty"`
	DriverComment    *string   `json:"driver_comment,omitempty"`
	PassengerScore   *int      `json:"passenger_score,omitempty"`
	PassengerComment *string   `json:"passenger_comment,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toBookingResponse(b *domain.Booking) BookingResponse {
	return BookingResponse{
		ID:               b.ID,
		RiderID:          b.RiderID,
		OfferID:          b.OfferID,
		DriverScore:      b.DriverScore,
		DriverComment:    b.DriverComment,
		PassengerScore:   b.PassengerScore,
		PassengerComment: b.PassengerComment,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

func toBookingResponses(bookings []*domain.Booking) []BookingResponse {
	items := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, toBookingResponse(b))
	}
	return items
}

// Join handles POST /v1/offers/:id/join
func (h *BookingHandler) Join(c *gin.Context) {
	booking, err := h.bookingService.Join(c.Request.Context(), middleware.PrincipalID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toBookingResponse(booking))
}

// Leave handles DELETE /v1/offers/:id/join
func (h *BookingHandler) Leave(c *gin.Context) {
	if err := h.bookingService.Leave(c.Request.Context(), middleware.PrincipalID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetMine handles GET /v1/offers/:id/join
func (h *BookingHandler) GetMine(c *gin.Context) {
	booking, err := h.bookingService.Get(c.Request.Context(), middleware.PrincipalID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// ListForOffer handles GET /v1/offers/:id/bookings
func (h *BookingHandler) ListForOffer(c *gin.Context) {
	limit, offset, err := queryPage(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	bookings, err := h.bookingService.ListForOffer(c.Request.Context(), c.Param("id"), middleware.PrincipalID(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, PageResponse[BookingResponse]{Items: toBookingResponses(bookings), Limit: limit, Offset: offset})
}

// ListMine handles GET /v1/bookings
func (h *BookingHandler) ListMine(c *gin.Context) {
	limit, offset, err := queryPage(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	bookings, err := h.bookingService.ListForRider(c.Request.Context(), middleware.PrincipalID(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, PageResponse[BookingResponse]{Items: toBookingResponses(bookings), Limit: limit, Offset: offset})
}
