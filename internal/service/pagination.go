package service

// SearchLimits bounds page sizes for search operations.
type SearchLimits struct {
	Default int
	Max     int
}

// DefaultSearchLimits are used when no limits are configured.
var DefaultSearchLimits = SearchLimits{Default: 10, Max: 100}

func (l SearchLimits) normalize() SearchLimits {
	if l.Default <= 0 {
		l.Default = DefaultSearchLimits.Default
	}
	if l.Max <= 0 {
		l.Max = DefaultSearchLimits.Max
	}
	if l.Default > l.Max {
		l.Default = l.Max
	}
	return l
}

// resolve returns the effective limit and offset for a page request.
// A zero limit uses the default and a limit above the maximum is capped.
func (l SearchLimits) resolve(limit, offset int) (int, int, error) {
	if limit < 0 || offset < 0 {
		return 0, 0, ErrInvalidPagination
	}
	l = l.normalize()
	switch {
	case limit == 0:
		limit = l.Default
	case limit > l.Max:
		limit = l.Max
	}
	return limit, offset, nil
}
