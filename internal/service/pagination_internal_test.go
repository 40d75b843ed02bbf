package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchLimits_Resolve(t *testing.T) {
	t.Parallel()

	limits := SearchLimits{Default: 10, Max: 50}

	testCases := []struct {
		name       string
		limit      int
		offset     int
		wantLimit  int
		wantOffset int
		wantErr    bool
	}{
		{name: "zero uses default", limit: 0, offset: 0, wantLimit: 10},
		{name: "within bounds", limit: 25, offset: 5, wantLimit: 25, wantOffset: 5},
		{name: "capped at max", limit: 500, wantLimit: 50},
		{name: "negative limit", limit: -1, wantErr: true},
		{name: "negative offset", offset: -3, wantErr: true},
	}

	for _, tc := range testCases {
		limit, offset, err := limits.resolve(tc.limit, tc.offset)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrInvalidPagination, tc.name)
			continue
		}
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.wantLimit, limit, tc.name)
		assert.Equal(t, tc.wantOffset, offset, tc.name)
	}
}

func TestSearchLimits_NormalizeFillsZeroValues(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultSearchLimits, SearchLimits{}.normalize())
	assert.Equal(t, SearchLimits{Default: 5, Max: 5}, SearchLimits{Default: 20, Max: 5}.normalize())
}
