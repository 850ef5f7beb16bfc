package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"ASC", "ASC"},
		{"asc", "ASC"},
		{" Asc ", "ASC"},
		{"DESC", "DESC"},
		{"desc", "DESC"},
		{"", "DESC"},
		{"sideways", "DESC"},
		{"ASC; DROP TABLE sales", "DESC"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateSortOrder(tt.input))
		})
	}
}

func TestValidateSortField(t *testing.T) {
	t.Run("accepts whitelisted field", func(t *testing.T) {
		assert.Equal(t, "performed_at", ValidateSortField("performed_at", MovementSortFields, "created_at"))
	})

	t.Run("falls back on unknown field", func(t *testing.T) {
		assert.Equal(t, "created_at", ValidateSortField("secret_column", MovementSortFields, "created_at"))
	})

	t.Run("falls back on empty field", func(t *testing.T) {
		assert.Equal(t, "performed_at", ValidateSortField("  ", MovementSortFields, "performed_at"))
	})

	t.Run("rejects injection attempts", func(t *testing.T) {
		assert.Equal(t, "created_at", ValidateSortField("folio; DELETE FROM sales", SaleSortFields, "created_at"))
	})
}
