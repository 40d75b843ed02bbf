package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Lisboa", "Lisboa"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`c:\dir`, `c:\\dir`},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeLike(tt.in))
		})
	}

	assert.Equal(t, `%50\%%`, containsPattern("50%"))
}

func TestPqErrorClassification(t *testing.T) {
	unique := &pq.Error{Code: "23505"}
	check := &pq.Error{Code: "23514"}
	serialization := &pq.Error{Code: "40001"}
	deadlock := &pq.Error{Code: "40P01"}

	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", unique)))
	assert.False(t, isUniqueViolation(check))
	assert.True(t, isCheckViolation(check))
	assert.True(t, isRetryable(serialization))
	assert.True(t, isRetryable(deadlock))
	assert.False(t, isRetryable(unique))
	assert.False(t, isRetryable(errors.New("connection reset")))
	assert.Equal(t, "", pqCode(errors.New("plain")))
}

func TestIsMissing(t *testing.T) {
	assert.True(t, isMissing(sql.ErrNoRows))
	assert.True(t, isMissing(fmt.Errorf("select offer: %w", sql.ErrNoRows)))
	assert.True(t, isMissing(&pq.Error{Code: "22P02"}), "malformed uuid names no row")
	assert.False(t, isMissing(&pq.Error{Code: "23505"}))
	assert.False(t, isMissing(errors.New("connection refused")))
}
