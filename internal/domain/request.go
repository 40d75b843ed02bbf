package domain

import "time"

// RequestStatus is derived from whether the request is linked to an offer.
type RequestStatus string

const (
	RequestStatusOpen    RequestStatus = "OPEN"
	RequestStatusMatched RequestStatus = "MATCHED"
)

// RideRequest is a rider's desired departure window, budget and route.
type RideRequest struct {
	ID                string
	RequesterID       string
	EarliestDeparture time.Time
	LatestDeparture   time.Time
	MaxPrice          float64
	Origin            string
	Destination       string
	OfferID           *string // set once matched
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Status returns the current request status.
func (r *RideRequest) Status() RequestStatus {
	if r.OfferID != nil {
		return RequestStatusMatched
	}
	return RequestStatusOpen
}

// Accepts reports whether the given departure falls inside the request window.
func (r *RideRequest) Accepts(departure time.Time) bool {
	return !departure.Before(r.EarliestDeparture) && !departure.After(r.LatestDeparture)
}

// RequestPatch holds the mutable fields of a request. Nil fields are left untouched.
type RequestPatch struct {
	EarliestDeparture *time.Time
	LatestDeparture   *time.Time
	MaxPrice          *float64
	Origin            *string
	Destination       *string
}

// Apply returns a copy of r with the patch applied.
func (p RequestPatch) Apply(r RideRequest) RideRequest {
	if p.EarliestDeparture != nil {
		r.EarliestDeparture = *p.EarliestDeparture
	}
	if p.LatestDeparture != nil {
		r.LatestDeparture = *p.LatestDeparture
	}
	if p.MaxPrice != nil {
		r.MaxPrice = *p.MaxPrice
	}
	if p.Origin != nil {
		r.Origin = *p.Origin
	}
	if p.Destination != nil {
		r.Destination = *p.Destination
	}
	return r
}

// RequestOrder is the sort key for request searches.
type RequestOrder string

const (
	RequestOrderEarliest RequestOrder = "earliest"
	RequestOrderLatest   RequestOrder = "latest"
	RequestOrderPrice    RequestOrder = "price"
	RequestOrderCreated  RequestOrder = "created"
)

// RequestFilter narrows a request search.
type RequestFilter struct {
	RequesterID   string
	DepartureFrom *time.Time // window must end at or after this
	DepartureTo   *time.Time // window must start at or before this
	MinPrice      *float64
	MaxPrice      *float64
	OpenOnly      bool
	OrderBy       RequestOrder
	Descending    bool
	Limit         int
	Offset        int
}

// RequestPage is one page of a request search.
type RequestPage struct {
	Requests []*RideRequest
	Limit    int
	Offset   int
}

// MatchOutcome describes how an automatic match attempt ended.
type MatchOutcome string

const (
	MatchOutcomeNotAttempted  MatchOutcome = "NOT_ATTEMPTED"
	MatchOutcomeMatched       MatchOutcome = "MATCHED"
	MatchOutcomeNoCandidate   MatchOutcome = "NO_CANDIDATE"
	MatchOutcomeCandidateLost MatchOutcome = "CANDIDATE_LOST"
)
