package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFreeText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain text passes", "Groceries at the market", "Groceries at the market"},
		{"tags stripped", "<b>Rent</b> March", "Rent March"},
		{"script content dropped", "<script>alert(1)</script>Lunch", "Lunch"},
		{"surrounding whitespace trimmed", "  Coffee\t", "Coffee"},
		{"control characters removed", "Taxi\x00\x08 home", "Taxi home"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeFreeText(tc.in))
		})
	}
}

func TestValidateStringMaxLength(t *testing.T) {
	assert.NoError(t, ValidateStringMaxLength("short", 10, "description"))
	err := ValidateStringMaxLength(strings.Repeat("x", 11), 10, "description")
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestValidateDate(t *testing.T) {
	assert.NoError(t, ValidateDate("2026-03-01", "date"))
	assert.ErrorIs(t, ValidateDate("2026-3-1", "date"), ErrValidationFailed)
	assert.ErrorIs(t, ValidateDate("01/03/2026", "date"), ErrValidationFailed)
	assert.ErrorIs(t, ValidateDate("2026-02-30", "date"), ErrValidationFailed)
}
