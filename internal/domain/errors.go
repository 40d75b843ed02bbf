package domain

import "errors"

// Error categories. Every concrete error returned by the repository and
// service layers wraps exactly one of these, so callers can branch with
// errors.Is on the category alone.
var (
	ErrValidation     = errors.New("validation error")
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInfrastructure = errors.New("infrastructure error")
)

// IsCategorized reports whether err already belongs to one of the error categories.
func IsCategorized(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInfrastructure)
}
