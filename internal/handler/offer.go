package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"carona/internal/domain"
	"carona/internal/middleware"
	"carona/internal/service"
)

// OfferHandler handles HTTP requests for ride offers.
type OfferHandler struct {
	offerService *service.OfferService
}

// NewOfferHandler creates a new OfferHandler.
func NewOfferHandler(offerService *service.OfferService) *OfferHandler {
	return &OfferHandler{offerService: offerService}
}

// CreateOfferRequest is the HTTP request body for publishing an offer.
type CreateOfferRequest struct {
	VehicleID   string    `json:"vehicle_id"`
	DepartureAt time.Time `json:"departure_at"`
	Price       float64   `json:"price"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Seats       int       `json:"seats"`
}

// UpdateOfferRequest is the HTTP request body for changing an offer. Omitted fields are kept.
type UpdateOfferRequest struct {
	VehicleID   *string    `json:"vehicle_id"`
	DepartureAt *time.Time `json:"departure_at"`
	Price       *float64   `json:"price"`
	Origin      *string    `json:"origin"`
	Destination *string    `json:"destination"`
	Seats       *int       `json:"seats"`
}

// OfferResponse is the HTTP representation of an offer.
type OfferResponse struct {
	ID             string    `json:"id"`
	DriverID       string    `json:"driver_id"`
	VehicleID      string    `json:"vehicle_id"`
	DepartureAt    time.Time `json:"departure_at"`
	Price          float64   `json:"price"`
	Origin         string    `json:"origin"`
	Destination    string    `json:"destination"`
	Seats          int       `json:"seats"`
	FilledSeats    int       `json:"filled_seats"`
	RemainingSeats int       `json:"remaining_seats"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toOfferResponse(o *domain.Offer) OfferResponse {
	return OfferResponse{
		ID:             o.ID,
		DriverID:       o.DriverID,
		VehicleID:      o.VehicleID,
		DepartureAt:    o.DepartureAt,
		Price:          o.Price,
		Origin:         o.Origin,
		Destination:    o.Destination,
		Seats:          o.Seats,
		FilledSeats:    o.BookedSeats,
		RemainingSeats: o.RemainingSeats(),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

// CreateOffer handles POST /v1/offers
func (h *OfferHandler) CreateOffer(c *gin.Context) {
	var req CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	offer, err := h.offerService.CreateOffer(c.Request.Context(), service.CreateOfferRequest{
		DriverID:    middleware.PrincipalID(c),
		VehicleID:   req.VehicleID,
		DepartureAt: req.DepartureAt,
		Price:       req.Price,
		Origin:      req.Origin,
		Destination: req.Destination,
		Seats:       req.Seats,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toOfferResponse(offer))
}

// GetOffer handles GET /v1/offers/:id
func (h *OfferHandler) GetOffer(c *gin.Context) {
	offer, err := h.offerService.GetOffer(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toOfferResponse(offer))
}

// UpdateOffer handles PATCH /v1/offers/:id
func (h *OfferHandler) UpdateOffer(c *gin.Context) {
	var req UpdateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	offer, err := h.offerService.UpdateOffer(c.Request.Context(), service.UpdateOfferRequest{
		OfferID:  c.Param("id"),
		DriverID: middleware.PrincipalID(c),
		Patch: domain.OfferPatch{
			VehicleID:   req.VehicleID,
			DepartureAt: req.DepartureAt,
			Price:       req.Price,
			Origin:      req.Origin,
			Destination: req.Destination,
			Seats:       req.Seats,
		},
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toOfferResponse(offer))
}

// DeleteOffer handles DELETE /v1/offers/:id?enforce=true
func (h *OfferHandler) DeleteOffer(c *gin.Context) {
	enforce, err := queryBool(c, "enforce")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	err = h.offerService.DeleteOffer(c.Request.Context(), service.DeleteOfferRequest{
		OfferID:  c.Param("id"),
		DriverID: middleware.PrincipalID(c),
		Enforce:  enforce,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SearchOffers handles GET /v1/offers
func (h *OfferHandler) SearchOffers(c *gin.Context) {
	filter, err := offerFilterFromQuery(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	page, err := h.offerService.SearchOffers(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]OfferResponse, 0, len(page.Offers))
	for _, o := range page.Offers {
		items = append(items, toOfferResponse(o))
	}
	respondJSON(c, http.StatusOK, PageResponse[OfferResponse]{Items: items, Limit: page.Limit, Offset: page.Offset})
}

func offerFilterFromQuery(c *gin.Context) (domain.OfferFilter, error) {
	var filter domain.OfferFilter
	var err error

	if filter.DepartureFrom, err = queryTime(c, "departure_from"); err != nil {
		return filter, err
	}
	if filter.DepartureTo, err = queryTime(c, "departure_to"); err != nil {
		return filter, err
	}
	if filter.MinPrice, err = queryFloat(c, "min_price"); err != nil {
		return filter, err
	}
	if filter.MaxPrice, err = queryFloat(c, "max_price"); err != nil {
		return filter, err
	}
	if filter.MinSeats, err = queryInt(c, "min_seats"); err != nil {
		return filter, err
	}
	if filter.Descending, err = queryDescending(c); err != nil {
		return filter, err
	}
	if filter.Limit, filter.Offset, err = queryPage(c); err != nil {
		return filter, err
	}

	filter.DriverID = c.Query("driver_id")
	filter.Origin = c.Query("origin")
	filter.Destination = c.Query("destination")
	filter.OrderBy = domain.OfferOrder(c.Query("order_by"))
	return filter, nil
}
