package dashboard

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatThousands(t *testing.T) {
	assert.Equal(t, "0", FormatThousands(0))
	assert.Equal(t, "950", FormatThousands(950))
	assert.Equal(t, "1.234", FormatThousands(1234))
	assert.Equal(t, "12.345.678", FormatThousands(12345678))
}

func TestFormatShort(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{950, "950"},
		{12345, "12k"},
		{1000, "1k"},
		{1234567, "1,2M"},
		{25_000_000, "25,0M"},
		{-4200, "-4k"},
		{math.NaN(), "0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatShort(tt.in), "in=%v", tt.in)
	}
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "50%", FormatPercent(50.2, 0))
	assert.Equal(t, "12.3%", FormatPercent(12.34, 1))
	assert.Equal(t, "0.00%", FormatPercent(0, 2))
}
