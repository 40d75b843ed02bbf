package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"carona/internal/domain"
	"carona/internal/repository"
)

var requestColumns = []string{
	"id", "requester_id", "earliest_departure", "latest_departure", "max_price",
	"origin", "destination", "offer_id", "created_at", "updated_at",
}

var requestOrderColumns = map[domain.RequestOrder]string{
	domain.RequestOrderEarliest: "earliest_departure",
	domain.RequestOrderLatest:   "latest_departure",
	domain.RequestOrderPrice:    "max_price",
	domain.RequestOrderCreated:  "created_at",
}

// RequestRepository is a PostgreSQL implementation of repository.RequestRepository.
type RequestRepository struct {
	q  Querier
	tx *TxRunner
}

// NewRequestRepository creates a new PostgreSQL ride request repository.
func NewRequestRepository(db *sql.DB, tx *TxRunner) *RequestRepository {
	return &RequestRepository{q: db, tx: tx}
}

// Create persists a new request.
func (r *RequestRepository) Create(ctx context.Context, request *domain.RideRequest) error {
	query, args, err := psql.Insert("ride_requests").
		Columns(requestColumns...).
		Values(
			request.ID,
			request.RequesterID,
			request.EarliestDeparture,
			request.LatestDeparture,
			request.MaxPrice,
			request.Origin,
			request.Destination,
			nullString(request.OfferID),
			request.CreatedAt,
			request.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert ride request: %w", err)
	}

	_, err = r.q.ExecContext(ctx, query, args...)
	return err
}

// GetByID retrieves a request by ID.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*domain.RideRequest, error) {
	return getRequest(ctx, r.q, id, false)
}

func getRequest(ctx context.Context, q Querier, id string, forUpdate bool) (*domain.RideRequest, error) {
	builder := psql.Select(requestColumns...).From("ride_requests").Where(squirrel.Eq{"id": id})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select ride request: %w", err)
	}

	request, err := scanRequest(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if isMissing(err) {
			return nil, repository.ErrRequestNotFound
		}
		return nil, err
	}
	return request, nil
}

// Update applies patch while the request is still open.
func (r *RequestRepository) Update(ctx context.Context, id string, patch domain.RequestPatch) (*domain.RideRequest, error) {
	builder := psql.Update("ride_requests").
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		Where("offer_id IS NULL")

	if patch.EarliestDeparture != nil {
		builder = builder.Set("earliest_departure", *patch.EarliestDeparture)
	}
	if patch.LatestDeparture != nil {
		builder = builder.Set("latest_departure", *patch.LatestDeparture)
	}
	if patch.MaxPrice != nil {
		builder = builder.Set("max_price", *patch.MaxPrice)
	}
	if patch.Origin != nil {
		builder = builder.Set("origin", *patch.Origin)
	}
	if patch.Destination != nil {
		builder = builder.Set("destination", *patch.Destination)
	}

	query, args, err := builder.Suffix(returning(requestColumns)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update ride request: %w", err)
	}

	request, err := scanRequest(r.q.QueryRowContext(ctx, query, args...))
	if err == nil {
		return request, nil
	}
	if !isMissing(err) {
		return nil, err
	}

	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, repository.ErrRequestAlreadyMatched
}

// Delete removes a request.
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM ride_requests WHERE id = $1`, id)
	if err != nil {
		if isMissing(err) {
			return repository.ErrRequestNotFound
		}
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrRequestNotFound
	}

	return nil
}

// Search returns the requests matching filter.
func (r *RequestRepository) Search(ctx context.Context, filter domain.RequestFilter) ([]*domain.RideRequest, error) {
	builder := psql.Select(requestColumns...).From("ride_requests")

	if filter.RequesterID != "" {
		builder = builder.Where(squirrel.Eq{"requester_id": filter.RequesterID})
	}
	if filter.DepartureFrom != nil {
		builder = builder.Where(squirrel.GtOrEq{"latest_departure": *filter.DepartureFrom})
	}
	if filter.DepartureTo != nil {
		builder = builder.Where(squirrel.LtOrEq{"earliest_departure": *filter.DepartureTo})
	}
	if filter.MinPrice != nil {
		builder = builder.Where(squirrel.GtOrEq{"max_price": *filter.MinPrice})
	}
	if filter.MaxPrice != nil {
		builder = builder.Where(squirrel.LtOrEq{"max_price": *filter.MaxPrice})
	}
	if filter.OpenOnly {
		builder = builder.Where("offer_id IS NULL")
	}

	column, ok := requestOrderColumns[filter.OrderBy]
	if !ok {
		column = requestOrderColumns[domain.RequestOrderEarliest]
	}
	direction := "ASC"
	if filter.Descending {
		direction = "DESC"
	}

	query, args, err := builder.
		OrderBy(column+" "+direction, "id "+direction).
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search ride requests: %w", err)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]*domain.RideRequest, 0)
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}

// Fulfill creates an offer for an open request and books the requester on it.
func (r *RequestRepository) Fulfill(ctx context.Context, params repository.FulfillParams) (*repository.FulfillResult, error) {
	var result *repository.FulfillResult
	err := r.tx.Run(ctx, func(tx *sql.Tx) error {
		request, err := getRequest(ctx, tx, params.RequestID, true)
		if err != nil {
			return err
		}
		if request.OfferID != nil {
			return repository.ErrRequestAlreadyMatched
		}
		if request.RequesterID == params.Offer.DriverID {
			return repository.ErrOwnOffer
		}

		offer := *params.Offer
		offer.BookedSeats = 0
		if err := insertOffer(ctx, tx, &offer); err != nil {
			return err
		}

		booking, err := reserveSeat(ctx, tx, request.RequesterID, offer.ID)
		if err != nil {
			return err
		}
		offer.BookedSeats = 1

		if err := linkRequest(ctx, tx, request.ID, offer.ID); err != nil {
			return err
		}
		offerID := offer.ID
		request.OfferID = &offerID
		request.UpdatedAt = time.Now().UTC()

		result = &repository.FulfillResult{Request: request, Offer: &offer, Booking: booking}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func scanRequest(s rowScanner) (*domain.RideRequest, error) {
	var request domain.RideRequest
	var offerID sql.NullString

	err := s.Scan(
		&request.ID,
		&request.RequesterID,
		&request.EarliestDeparture,
		&request.LatestDeparture,
		&request.MaxPrice,
		&request.Origin,
		&request.Destination,
		&offerID,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	request.OfferID = stringPtr(offerID)
	return &request, nil
}
