package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"carona/internal/domain"
	"carona/internal/repository"
)

var bookingColumns = []string{
	"id", "rider_id", "offer_id", "driver_score", "driver_comment",
	"passenger_score", "passenger_comment", "created_at", "updated_at",
}

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
type BookingRepository struct {
	q  Querier
	tx *TxRunner
}

// NewBookingRepository creates a new PostgreSQL booking repository.
func NewBookingRepository(db *sql.DB, tx *TxRunner) *BookingRepository {
	return &BookingRepository{q: db, tx: tx}
}

// Join reserves a seat. The offer row is locked first, so concurrent joins
// on the same offer are serialized and the booked_seats counter can only
// move while the lock is held.
func (r *BookingRepository) Join(ctx context.Context, params repository.JoinParams) (*domain.Booking, error) {
	var booking *domain.Booking
	err := r.tx.Run(ctx, func(tx *sql.Tx) error {
		offer, err := getOffer(ctx, tx, params.OfferID, true)
		if err != nil {
			return err
		}

		if offer.DriverID == params.RiderID {
			return repository.ErrOwnOffer
		}

		if _, err := getBooking(ctx, tx, params.RiderID, params.OfferID); err == nil {
			return repository.ErrAlreadyJoined
		} else if !errors.Is(err, repository.ErrBookingNotFound) {
			return err
		}

		if offer.RemainingSeats() < 1 {
			return repository.ErrRideFull
		}

		booking, err = reserveSeat(ctx, tx, params.RiderID, params.OfferID)
		if err != nil {
			return err
		}

		if params.RequestID != "" {
			return linkRequest(ctx, tx, params.RequestID, params.OfferID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// reserveSeat increments the counter and inserts the booking. The counter
// update is conditional so it cannot overbook even without the row lock.
func reserveSeat(ctx context.Context, tx *sql.Tx, riderID, offerID string) (*domain.Booking, error) {
	result, err := tx.ExecContext(ctx, `
		UPDATE offers SET booked_seats = booked_seats + 1, updated_at = now()
		WHERE id = $1 AND booked_seats < seats
	`, offerID)
	if err != nil {
		if isCheckViolation(err) {
			return nil, repository.ErrRideFull
		}
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, repository.ErrRideFull
	}

	now := time.Now().UTC()
	booking := &domain.Booking{
		ID:        uuid.New().String(),
		RiderID:   riderID,
		OfferID:   offerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query, args, err := psql.Insert("bookings").
		Columns("id", "rider_id", "offer_id", "created_at", "updated_at").
		Values(booking.ID, booking.RiderID, booking.OfferID, booking.CreatedAt, booking.UpdatedAt).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert booking: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrAlreadyJoined
		}
		return nil, err
	}

	return booking, nil
}

// linkRequest marks an open request as matched to offerID.
func linkRequest(ctx context.Context, tx *sql.Tx, requestID, offerID string) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE ride_requests SET offer_id = $1, updated_at = now()
		WHERE id = $2 AND offer_id IS NULL
	`, offerID, requestID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected > 0 {
		return nil
	}

	if _, err := getRequest(ctx, tx, requestID, false); err != nil {
		return err
	}
	return repository.ErrRequestAlreadyMatched
}

// Leave deletes the booking, frees its seat and reopens any request of the
// rider that was matched to the offer.
func (r *BookingRepository) Leave(ctx context.Context, riderID, offerID string) error {
	return r.tx.Run(ctx, func(tx *sql.Tx) error {
		if _, err := getOffer(ctx, tx, offerID, true); err != nil {
			if errors.Is(err, repository.ErrOfferNotFound) {
				return repository.ErrBookingNotFound
			}
			return err
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE rider_id = $1 AND offer_id = $2`, riderID, offerID)
		if err != nil {
			return err
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			return repository.ErrBookingNotFound
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE offers SET booked_seats = booked_seats - 1, updated_at = now()
			WHERE id = $1
		`, offerID); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE ride_requests SET offer_id = NULL, updated_at = now()
			WHERE requester_id = $1 AND offer_id = $2
		`, riderID, offerID)
		return err
	})
}

// Get retrieves the booking of a rider on an offer.
func (r *BookingRepository) Get(ctx context.Context, riderID, offerID string) (*domain.Booking, error) {
	return getBooking(ctx, r.q, riderID, offerID)
}

func getBooking(ctx context.Context, q Querier, riderID, offerID string) (*domain.Booking, error) {
	query, args, err := psql.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.Eq{"rider_id": riderID, "offer_id": offerID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select booking: %w", err)
	}

	booking, err := scanBooking(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if isMissing(err) {
			return nil, repository.ErrBookingNotFound
		}
		return nil, err
	}
	return booking, nil
}

// List returns bookings matching filter, oldest first.
func (r *BookingRepository) List(ctx context.Context, filter domain.BookingFilter) ([]*domain.Booking, error) {
	builder := psql.Select(bookingColumns...).From("bookings")
	if filter.RiderID != "" {
		builder = builder.Where(squirrel.Eq{"rider_id": filter.RiderID})
	}
	if filter.OfferID != "" {
		builder = builder.Where(squirrel.Eq{"offer_id": filter.OfferID})
	}
	builder = builder.OrderBy("created_at ASC", "id ASC")
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list bookings: %w", err)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]*domain.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

func scanBooking(s rowScanner) (*domain.Booking, error) {
	var booking domain.Booking
	var driverScore, passengerScore sql.NullInt32
	var driverComment, passengerComment sql.NullString

	err := s.Scan(
		&booking.ID,
		&booking.RiderID,
		&booking.OfferID,
		&driverScore,
		&driverComment,
		&passengerScore,
		&passengerComment,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	booking.DriverScore = intPtr(driverScore)
	booking.DriverComment = stringPtr(driverComment)
	booking.PassengerScore = intPtr(passengerScore)
	booking.PassengerComment = stringPtr(passengerComment)
	return &booking, nil
}
