package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"carona/internal/domain"
	"carona/internal/repository"
)

var offerColumns = []string{
	"id", "driver_id", "vehicle_id", "departure_at", "price", "origin", "destination",
	"seats", "booked_seats", "created_at", "updated_at",
}

var offerOrderColumns = map[domain.OfferOrder]string{
	domain.OfferOrderDeparture: "departure_at",
	domain.OfferOrderPrice:     "price",
	domain.OfferOrderCreated:   "created_at",
}

// OfferRepository is a PostgreSQL implementation of repository.OfferRepository.
type OfferRepository struct {
	q  Querier
	tx *TxRunner
}

// NewOfferRepository creates a new PostgreSQL offer repository.
func NewOfferRepository(db *sql.DB, tx *TxRunner) *OfferRepository {
	return &OfferRepository{q: db, tx: tx}
}

// Create persists a new offer.
func (r *OfferRepository) Create(ctx context.Context, offer *domain.Offer) error {
	return insertOffer(ctx, r.q, offer)
}

func insertOffer(ctx context.Context, q Querier, offer *domain.Offer) error {
	query, args, err := psql.Insert("offers").
		Columns(offerColumns...).
		Values(
			offer.ID,
			offer.DriverID,
			offer.VehicleID,
			offer.DepartureAt,
			offer.Price,
			offer.Origin,
			offer.Destination,
			offer.Seats,
			offer.BookedSeats,
			offer.CreatedAt,
			offer.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert offer: %w", err)
	}

	_, err = q.ExecContext(ctx, query, args...)
	return err
}

// GetByID retrieves an offer by ID.
func (r *OfferRepository) GetByID(ctx context.Context, id string) (*domain.Offer, error) {
	return getOffer(ctx, r.q, id, false)
}

func getOffer(ctx context.Context, q Querier, id string, forUpdate bool) (*domain.Offer, error) {
	builder := psql.Select(offerColumns...).From("offers").Where(squirrel.Eq{"id": id})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select offer: %w", err)
	}

	offer, err := scanOffer(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if isMissing(err) {
			return nil, repository.ErrOfferNotFound
		}
		return nil, err
	}
	return offer, nil
}

// Search returns the offers matching filter.
func (r *OfferRepository) Search(ctx context.Context, filter domain.OfferFilter) ([]*domain.Offer, error) {
	builder := psql.Select(offerColumns...).From("offers")

	if filter.DepartureFrom != nil {
		builder = builder.Where(squirrel.GtOrEq{"departure_at": *filter.DepartureFrom})
	}
	if filter.DepartureTo != nil {
		builder = builder.Where(squirrel.LtOrEq{"departure_at": *filter.DepartureTo})
	}
	if filter.MinPrice != nil {
		builder = builder.Where(squirrel.GtOrEq{"price": *filter.MinPrice})
	}
	if filter.MaxPrice != nil {
		builder = builder.Where(squirrel.LtOrEq{"price": *filter.MaxPrice})
	}
	if filter.DriverID != "" {
		builder = builder.Where(squirrel.Eq{"driver_id": filter.DriverID})
	}
	if filter.Origin != "" {
		builder = builder.Where(squirrel.ILike{"origin": containsPattern(filter.Origin)})
	}
	if filter.Destination != "" {
		builder = builder.Where(squirrel.ILike{"destination": containsPattern(filter.Destination)})
	}
	if filter.MinSeats != nil {
		builder = builder.Where("seats - booked_seats >= ?", *filter.MinSeats)
	}

	column, ok := offerOrderColumns[filter.OrderBy]
	if !ok {
		column = offerOrderColumns[domain.OfferOrderDeparture]
	}
	direction := "ASC"
	if filter.Descending {
		direction = "DESC"
	}
	builder = builder.
		OrderBy(column+" "+direction, "id "+direction).
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset))

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search offers: %w", err)
	}

	return queryOffers(ctx, r.q, query, args...)
}

// Update applies patch in a single conditional statement.
func (r *OfferRepository) Update(ctx context.Context, id string, patch domain.OfferPatch) (*domain.Offer, error) {
	if patch.IsEmpty() {
		return r.GetByID(ctx, id)
	}

	builder := psql.Update("offers").
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id})

	if patch.VehicleID != nil {
		builder = builder.Set("vehicle_id", *patch.VehicleID)
	}
	if patch.DepartureAt != nil {
		builder = builder.Set("departure_at", *patch.DepartureAt)
	}
	if patch.Price != nil {
		builder = builder.Set("price", *patch.Price)
	}
	if patch.Origin != nil {
		builder = builder.Set("origin", *patch.Origin)
	}
	if patch.Destination != nil {
		builder = builder.Set("destination", *patch.Destination)
	}
	if patch.Seats != nil {
		builder = builder.
			Set("seats", *patch.Seats).
			Where(squirrel.LtOrEq{"booked_seats": *patch.Seats})
	}

	query, args, err := builder.Suffix(returning(offerColumns)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update offer: %w", err)
	}

	offer, err := scanOffer(r.q.QueryRowContext(ctx, query, args...))
	if err == nil {
		return offer, nil
	}
	if !isMissing(err) {
		if isCheckViolation(err) {
			return nil, repository.ErrCapacityViolation
		}
		return nil, err
	}

	// No row updated: either the offer is gone or the seat guard rejected it.
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, repository.ErrCapacityViolation
}

// Delete removes an offer, and with enforce its bookings, in one transaction.
func (r *OfferRepository) Delete(ctx context.Context, id string, enforce bool) ([]string, error) {
	var riderIDs []string
	err := r.tx.Run(ctx, func(tx *sql.Tx) error {
		riderIDs = nil

		offer, err := getOffer(ctx, tx, id, true)
		if err != nil {
			return err
		}

		if offer.IsOccupied() {
			if !enforce {
				return repository.ErrOfferOccupied
			}
			riderIDs, err = deleteBookings(ctx, tx, id)
			if err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM offers WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return riderIDs, nil
}

func deleteBookings(ctx context.Context, tx *sql.Tx, offerID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `DELETE FROM bookings WHERE offer_id = $1 RETURNING rider_id`, offerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var riderIDs []string
	for rows.Next() {
		var riderID string
		if err := rows.Scan(&riderID); err != nil {
			return nil, err
		}
		riderIDs = append(riderIDs, riderID)
	}
	return riderIDs, rows.Err()
}

// FindCheapest returns the cheapest offer the requester can still join.
// Ties are broken by earliest departure, then creation time, then id.
func (r *OfferRepository) FindCheapest(ctx context.Context, criteria domain.MatchCriteria) (*domain.Offer, error) {
	builder := psql.Select(offerColumns...).
		From("offers").
		Where(squirrel.GtOrEq{"departure_at": criteria.EarliestDeparture}).
		Where(squirrel.LtOrEq{"departure_at": criteria.LatestDeparture}).
		Where(squirrel.LtOrEq{"price": criteria.MaxPrice}).
		Where("booked_seats < seats").
		Where(squirrel.NotEq{"driver_id": criteria.RequesterID}).
		Where("NOT EXISTS (SELECT 1 FROM bookings b WHERE b.offer_id = offers.id AND b.rider_id = ?)", criteria.RequesterID)

	if criteria.Origin != "" {
		builder = builder.Where(squirrel.ILike{"origin": containsPattern(criteria.Origin)})
	}
	if criteria.Destination != "" {
		builder = builder.Where(squirrel.ILike{"destination": containsPattern(criteria.Destination)})
	}

	query, args, err := builder.
		OrderBy("price ASC", "departure_at ASC", "created_at ASC", "id ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find cheapest offer: %w", err)
	}

	offer, err := scanOffer(r.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if isMissing(err) {
			return nil, repository.ErrOfferNotFound
		}
		return nil, err
	}
	return offer, nil
}

func queryOffers(ctx context.Context, q Querier, query string, args ...any) ([]*domain.Offer, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	offers := make([]*domain.Offer, 0)
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}
	return offers, rows.Err()
}

func scanOffer(s rowScanner) (*domain.Offer, error) {
	var offer domain.Offer
	err := s.Scan(
		&offer.ID,
		&offer.DriverID,
		&offer.VehicleID,
		&offer.DepartureAt,
		&offer.Price,
		&offer.Origin,
		&offer.Destination,
		&offer.Seats,
		&offer.BookedSeats,
		&offer.CreatedAt,
		&offer.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func returning(columns []string) string {
	return "RETURNING " + strings.Join(columns, ", ")
}
