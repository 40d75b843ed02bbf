package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/newrelic/go-agent/v3/newrelic"

	"carona/internal/domain"
)

var (
	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = fmt.Errorf("%w: invalid driver id", domain.ErrValidation)

	// ErrInvalidRiderID is returned when rider ID is empty.
	ErrInvalidRiderID = fmt.Errorf("%w: invalid rider id", domain.ErrValidation)

	// ErrInvalidOfferID is returned when offer ID is empty.
	ErrInvalidOfferID = fmt.Errorf("%w: invalid offer id", domain.ErrValidation)

	// ErrInvalidRequestID is returned when ride request ID is empty.
	ErrInvalidRequestID = fmt.Errorf("%w: invalid ride request id", domain.ErrValidation)

	// ErrInvalidVehicleID is returned when vehicle ID is empty.
	ErrInvalidVehicleID = fmt.Errorf("%w: invalid vehicle id", domain.ErrValidation)

	// ErrInvalidPersonID is returned when the rated person ID is empty.
	ErrInvalidPersonID = fmt.Errorf("%w: invalid person id", domain.ErrValidation)

	// ErrInvalidSeats is returned when an offer has fewer than one seat.
	ErrInvalidSeats = fmt.Errorf("%w: seats must be at least 1", domain.ErrValidation)

	// ErrInvalidPrice is returned when a price or budget is negative.
	ErrInvalidPrice = fmt.Errorf("%w: price must not be negative", domain.ErrValidation)

	// ErrInvalidDeparture is returned when the departure time is missing.
	ErrInvalidDeparture = fmt.Errorf("%w: departure time is required", domain.ErrValidation)

	// ErrInvalidRoute is returned when origin or destination is empty.
	ErrInvalidRoute = fmt.Errorf("%w: origin and destination are required", domain.ErrValidation)

	// ErrInvalidTimeWindow is returned when a time window is missing or its start is after its end.
	ErrInvalidTimeWindow = fmt.Errorf("%w: invalid time window", domain.ErrValidation)

	// ErrInvalidPriceRange is returned when the minimum price is above the maximum.
	ErrInvalidPriceRange = fmt.Errorf("%w: invalid price range", domain.ErrValidation)

	// ErrInvalidOrderBy is returned for an unknown sort key.
	ErrInvalidOrderBy = fmt.Errorf("%w: invalid order by", domain.ErrValidation)

	// ErrInvalidPagination is returned for a negative limit or offset.
	ErrInvalidPagination = fmt.Errorf("%w: invalid pagination", domain.ErrValidation)

	// ErrInvalidScore is returned when a score is outside 1..5.
	ErrInvalidScore = fmt.Errorf("%w: score must be between %d and %d", domain.ErrValidation, MinScore, MaxScore)

	// ErrInvalidRole is returned for a role other than driver or passenger.
	ErrInvalidRole = fmt.Errorf("%w: role must be driver or passenger", domain.ErrValidation)

	// ErrDepartureOutsideWindow is returned when converting a request with a departure outside its window.
	ErrDepartureOutsideWindow = fmt.Errorf("%w: departure outside requested window", domain.ErrValidation)

	// ErrNotOfferOwner is returned when the principal is not the offer's driver.
	ErrNotOfferOwner = fmt.Errorf("%w: not the driver of this offer", domain.ErrForbidden)

	// ErrNotRequestOwner is returned when the principal did not create the ride request.
	ErrNotRequestOwner = fmt.Errorf("%w: not the owner of this ride request", domain.ErrForbidden)

	// ErrDriverNotOnOffer is returned when the rated driver does not drive the offer.
	ErrDriverNotOnOffer = fmt.Errorf("%w: driver is not the driver of this offer", domain.ErrNotFound)

	// ErrMatchInProgress is returned when another match attempt holds the request lock.
	ErrMatchInProgress = fmt.Errorf("%w: match already in progress", domain.ErrConflict)
)

// wrapInfra tags errors that carry no category as infrastructure errors.
func wrapInfra(err error) error {
	if err == nil || domain.IsCategorized(err) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrInfrastructure, err)
}

// logFailure logs err at a level matching its category and reports
// infrastructure errors to New Relic when a transaction is in ctx.
func logFailure(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, slog.String("error", err.Error()))
	switch {
	case errors.Is(err, domain.ErrInfrastructure):
		logger.ErrorContext(ctx, msg, attrs...)
		if txn := newrelic.FromContext(ctx); txn != nil {
			txn.NoticeError(err)
		}
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrForbidden):
		logger.WarnContext(ctx, msg, attrs...)
	default:
		logger.DebugContext(ctx, msg, attrs...)
	}
}
