package coerce

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDecimal(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "0"},
		{"float", 12.5, "12.5"},
		{"int", 7, "7"},
		{"int64", int64(-3), "-3"},
		{"numeric string", " 19.99 ", "19.99"},
		{"json number", json.Number("0.029"), "0.029"},
		{"garbage string", "twelve", "0"},
		{"empty string", "", "0"},
		{"bool", true, "0"},
		{"nan", math.NaN(), "0"},
		{"inf", math.Inf(1), "0"},
		{"decimal", decimal.RequireFromString("4.2"), "4.2"},
		{"null decimal", decimal.NullDecimal{}, "0"},
		{"map", map[string]any{"x": 1}, "0"},
		{"int8", int8(-8), "-8"},
		{"int16", int16(300), "300"},
		{"uint", uint(9), "9"},
		{"uint8", uint8(255), "255"},
		{"uint64 max", uint64(math.MaxUint64), "18446744073709551615"},
		{"exponent at bound", "1e30", "1e30"},
		{"huge exponent", "1e30000000", "0"},
		{"tiny exponent", "1e-31", "0"},
		{"too many digits", strings.Repeat("9", 41), "0"},
		{"huge float", 1e300, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decimal(tt.in)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestInt64(t *testing.T) {
	assert.Equal(t, int64(12), Int64("12.9"))
	assert.Equal(t, int64(-4), Int64(-4.7))
	assert.Equal(t, int64(0), Int64("n/a"))
	assert.Equal(t, int64(1500), Int64(json.Number("1500")))
}

func TestInt64_Saturates(t *testing.T) {
	assert.Equal(t, int64(math.MaxInt64), Int64("1e25"))
	assert.Equal(t, int64(math.MinInt64), Int64("-1e25"))
	assert.Equal(t, int64(math.MaxInt64), Int64(uint64(math.MaxUint64)))
	assert.Equal(t, int64(math.MaxInt64), Int64(json.Number("9223372036854775808")))
	assert.Equal(t, int64(math.MaxInt64), Int64(json.Number("9223372036854775807")))
}

func TestString(t *testing.T) {
	assert.Equal(t, "po_123", String("po_123"))
	assert.Equal(t, "42", String(float64(42)))
	assert.Equal(t, "", String(nil))
	assert.Equal(t, "", String([]string{"a"}))
}

func TestFirstPresent(t *testing.T) {
	m := map[string]any{"amount": nil, "gross": "10", "gross_amount": "20"}

	v, ok := FirstPresent(m, "gross_amount", "gross")
	assert.True(t, ok)
	assert.Equal(t, "20", v)

	v, ok = FirstPresent(m, "amount", "gross")
	assert.True(t, ok)
	assert.Equal(t, "10", v, "nil values fall through to the next key")

	_, ok = FirstPresent(m, "missing")
	assert.False(t, ok)

	assert.True(t, DecimalField(m, "missing", "gross").Equal(decimal.NewFromInt(10)))
	assert.Equal(t, int64(0), Int64Field(m, "missing"))
	assert.Equal(t, "20", StringField(m, "gross_amount"))
}
