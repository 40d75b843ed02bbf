package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"carona/internal/repository"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// psql builds PostgreSQL statements with $n placeholders.
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgreSQL SQLSTATE codes the repositories react to.
const (
	codeInvalidTextRepresentation = "22P02"
	codeUniqueViolation           = "23505"
	codeCheckViolation            = "23514"
	codeSerializationFailure      = "40001"
	codeDeadlockDetected          = "40P01"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pqCode(err) == codeUniqueViolation
}

func isCheckViolation(err error) bool {
	return pqCode(err) == codeCheckViolation
}

// isMissing reports whether a lookup found no row. An id that is not a
// valid UUID cannot name a row either.
func isMissing(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || pqCode(err) == codeInvalidTextRepresentation
}

// isRetryable reports whether the transaction failed only because of a
// concurrent transaction and can be replayed.
func isRetryable(err error) bool {
	switch pqCode(err) {
	case codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	return false
}

// TxRunner runs functions inside a transaction, replaying them when
// PostgreSQL aborts the transaction with a serialization or deadlock error.
type TxRunner struct {
	db         *sql.DB
	maxRetries int
	backoff    time.Duration
	onRetry    func()
}

// NewTxRunner creates a TxRunner. maxRetries is the number of replays after the first attempt.
func NewTxRunner(db *sql.DB, maxRetries int, backoff time.Duration) *TxRunner {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &TxRunner{db: db, maxRetries: maxRetries, backoff: backoff}
}

// OnRetry registers a callback invoked before every replay.
func (r *TxRunner) OnRetry(fn func()) {
	r.onRetry = fn
}

// Run executes fn in a READ COMMITTED transaction. Seat accounting relies on
// row locks taken with SELECT ... FOR UPDATE, which READ COMMITTED honours.
func (r *TxRunner) Run(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			if r.onRetry != nil {
				r.onRetry()
			}
			if waitErr := sleepContext(ctx, r.backoff*time.Duration(attempt)); waitErr != nil {
				return waitErr
			}
		}

		err = r.runOnce(ctx, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", repository.ErrTxConflict, err)
}

func (r *TxRunner) runOnce(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// escapeLike escapes LIKE wildcards so keywords match literally.
func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '\\', '%', '_':
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}

// containsPattern builds an ILIKE pattern matching s anywhere in the column.
func containsPattern(s string) string {
	return "%" + escapeLike(s) + "%"
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func intPtr(ni sql.NullInt32) *int {
	if !ni.Valid {
		return nil
	}
	i := int(ni.Int32)
	return &i
}
