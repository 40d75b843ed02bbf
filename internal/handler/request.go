package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"carona/internal/domain"
	"carona/internal/middleware"
	"carona/internal/service"
)

// RequestHandler handles HTTP requests for ride requests and matching.
type RequestHandler struct {
	matchingService *service.MatchingService
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(matchingService *service.MatchingService) *RequestHandler {
	return &RequestHandler{matchingService: matchingService}
}

// KeywordsBody restricts matching to offers whose route contains the keywords.
type KeywordsBody struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

func (k *KeywordsBody) toService() *service.Keywords {
	if k == nil {
		return nil
	}
	return &service.Keywords{Origin: k.Origin, Destination: k.Destination}
}

// CreateRequestBody is the HTTP request body for creating a ride request.
type CreateRequestBody struct {
	EarliestDeparture time.Time     `json:"earliest_departure"`
	LatestDeparture   time.Time     `json:"latest_departure"`
	MaxPrice          float64       `json:"max_price"`
	Origin            string        `json:"origin"`
	Destination       string        `json:"destination"`
	AutoMatch         bool          `json:"auto_match"`
	Keywords          *KeywordsBody `json:"keywords,omitempty"`
}

// MatchRequestBody is the HTTP request body for retrying a match.
type MatchRequestBody struct {
	Keywords *KeywordsBody `json:"keywords,omitempty"`
}

// UpdateRequestBody is the HTTP request body for changing an open request.
type UpdateRequestBody struct {
	EarliestDeparture *time.Time `json:"earliest_departure"`
	LatestDeparture   *time.Time `json:"latest_departure"`
	MaxPrice          *float64   `json:"max_price"`
	Origin            *string    `json:"origin"`
	Destination       *string    `json:"destination"`
}

// ConvertRequestBody is the HTTP request body for answering a request with a new offer.
type ConvertRequestBody struct {
	VehicleID   string    `json:"vehicle_id"`
	DepartureAt time.Time `json:"departure_at"`
	Price       float64   `json:"price"`
	Seats       int       `json:"seats"`
}

// RideRequestResponse is the HTTP representation of a ride request.
type RideRequestResponse struct {
	ID                string    `json:"id"`
	RequesterID       string    `json:"requester_id"`
	EarliestDeparture time.Time `json:"earliest_departure"`
	LatestDeparture   time.Time `json:"latest_departure"`
	MaxPrice          float64   `json:"max_price"`
	Origin            string    `json:"origin"`
	Destination       string    `json:"destination"`
	Status            string    `json:"status"`
	OfferID           *string   `json:"offer_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// MatchResponse is the HTTP response for a create or match call.
type MatchResponse struct {
	Request RideRequestResponse `json:"request"`
	Matched bool                `json:"matched"`
	Outcome string              `json:"outcome"`
	Booking *BookingResponse    `json:"booking,omitempty"`
	Offer   *OfferResponse      `json:"offer,omitempty"`
}

// ConvertResponse is the HTTP response for converting a request into an offer.
type ConvertResponse struct {
	Request RideRequestResponse `json:"request"`
	Offer   OfferResponse       `json:"offer"`
	Booking BookingResponse     `json:"booking"`
}

func toRideRequestResponse(r *domain.RideRequest) RideRequestResponse {
	return RideRequestResponse{
		ID:                r.ID,
		RequesterID:       r.RequesterID,
		EarliestDeparture: r.EarliestDeparture,
		LatestDeparture:   r.LatestDeparture,
		MaxPrice:          r.MaxPrice,
		Origin:            r.Origin,
		Destination:       r.Destination,
		Status:            string(r.Status()),
		OfferID:           r.OfferID,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func toMatchResponse(result *service.MatchResult) MatchResponse {
	resp := MatchResponse{
		Request: toRideRequestResponse(result.Request),
		Matched: result.Matched,
		Outcome: string(result.Outcome),
	}
	if result.Booking != nil {
		b := toBookingResponse(result.Booking)
		resp.Booking = &b
	}
	if result.Offer != nil {
		o := toOfferResponse(result.Offer)
		resp.Offer = &o
	}
	return resp
}

// CreateRequest handles POST /v1/requests
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	var body CreateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	result, err := h.matchingService.CreateRequest(c.Request.Context(), service.CreateRequestInput{
		RequesterID:       middleware.PrincipalID(c),
		EarliestDeparture: body.EarliestDeparture,
		LatestDeparture:   body.LatestDeparture,
		MaxPrice:          body.MaxPrice,
		Origin:            body.Origin,
		Destination:       body.Destination,
		AutoMatch:         body.AutoMatch,
		Keywords:          body.Keywords.toService(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toMatchResponse(result))
}

// MatchRequest handles POST /v1/requests/:id/match
func (h *RequestHandler) MatchRequest(c *gin.Context) {
	var body MatchRequestBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
	}

	result, err := h.matchingService.MatchRequest(c.Request.Context(), service.MatchRequestInput{
		RequestID:   c.Param("id"),
		RequesterID: middleware.PrincipalID(c),
		Keywords:    body.Keywords.toService(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toMatchResponse(result))
}

// ConvertToOffer handles POST /v1/requests/:id/offer
func (h *RequestHandler) ConvertToOffer(c *gin.Context) {
	var body ConvertRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	result, err := h.matchingService.ConvertRequestToOffer(c.Request.Context(), service.ConvertRequestInput{
		RequestID:   c.Param("id"),
		DriverID:    middleware.PrincipalID(c),
		VehicleID:   body.VehicleID,
		DepartureAt: body.DepartureAt,
		Price:       body.Price,
		Seats:       body.Seats,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, ConvertResponse{
		Request: toRideRequestResponse(result.Request),
		Offer:   toOfferResponse(result.Offer),
		Booking: toBookingResponse(result.Booking),
	})
}

// GetRequest handles GET /v1/requests/:id
func (h *RequestHandler) GetRequest(c *gin.Context) {
	request, err := h.matchingService.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideRequestResponse(request))
}

// UpdateRequest handles PATCH /v1/requests/:id
func (h *RequestHandler) UpdateRequest(c *gin.Context) {
	var body UpdateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	request, err := h.matchingService.UpdateRequest(c.Request.Context(), service.UpdateRequestInput{
		RequestID:   c.Param("id"),
		RequesterID: middleware.PrincipalID(c),
		Patch: domain.RequestPatch{
			EarliestDeparture: body.EarliestDeparture,
			LatestDeparture:   body.LatestDeparture,
			MaxPrice:          body.MaxPrice,
			Origin:            body.Origin,
			Destination:       body.Destination,
		},
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideRequestResponse(request))
}

// DeleteRequest handles DELETE /v1/requests/:id
func (h *RequestHandler) DeleteRequest(c *gin.Context) {
	if err := h.matchingService.DeleteRequest(c.Request.Context(), c.Param("id"), middleware.PrincipalID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SearchRequests handles GET /v1/requests
func (h *RequestHandler) SearchRequests(c *gin.Context) {
	filter, err := requestFilterFromQuery(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	page, err := h.matchingService.SearchRequests(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]RideRequestResponse, 0, len(page.Requests))
	for _, r := range page.Requests {
		items = append(items, toRideRequestResponse(r))
	}
	respondJSON(c, http.StatusOK, PageResponse[RideRequestResponse]{Items: items, Limit: page.Limit, Offset: page.Offset})
}

func requestFilterFromQuery(c *gin.Context) (domain.RequestFilter, error) {
	var filter domain.RequestFilter
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
	if filter.OpenOnly, err = queryBool(c, "open_only"); err != nil {
		return filter, err
	}
	if filter.Descending, err = queryDescending(c); err != nil {
		return filter, err
	}
	if filter.Limit, filter.Offset, err = queryPage(c); err != nil {
		return filter, err
	}

	filter.RequesterID = c.Query("requester_id")
	filter.OrderBy = domain.RequestOrder(c.Query("order_by"))
	return filter, nil
}
