// Package coerce converts loosely typed connector and template values into
// numbers. Every conversion that cannot produce a finite number yields zero;
// nothing in this package returns an error or NaN.
package coerce

import (
	"encoding/json"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Bounds on accepted magnitudes. Values outside them are treated as
// unparsable; rescaling them would allocate without limit.
const (
	maxExponent = 30
	maxDigits   = 40
)

var (
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64)
)

// Decimal converts v to a decimal. Unparsable, nil, boolean, non-finite and
// out-of-bounds inputs become zero.
func Decimal(v any) decimal.Decimal {
	return bounded(toDecimal(v))
}

func toDecimal(v any) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return x
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero
		}
		return *x
	case decimal.NullDecimal:
		if !x.Valid {
			return decimal.Zero
		}
		return x.Decimal
	case float64:
		return fromFloat(x)
	case float32:
		return fromFloat(float64(x))
	case int:
		return decimal.NewFromInt(int64(x))
	case int8:
		return decimal.NewFromInt(int64(x))
	case int16:
		return decimal.NewFromInt(int64(x))
	case int32:
		return decimal.NewFromInt32(x)
	case int64:
		return decimal.NewFromInt(x)
	case uint:
		return fromUint(uint64(x))
	case uint8:
		return decimal.NewFromInt(int64(x))
	case uint16:
		return decimal.NewFromInt(int64(x))
	case uint32:
		return decimal.NewFromInt(int64(x))
	case uint64:
		return fromUint(x)
	case json.Number:
		return fromString(x.String())
	case string:
		return fromString(x)
	case []byte:
		return fromString(string(x))
	default:
		return decimal.Zero
	}
}

// Int64 converts v to an integer, truncating any fractional part and
// saturating at the int64 range.
func Int64(v any) int64 {
	d := Decimal(v)
	switch {
	case d.GreaterThan(maxInt64):
		return math.MaxInt64
	case d.LessThan(minInt64):
		return math.MinInt64
	}
	if !d.IsInteger() {
		d = d.Truncate(0)
	}
	return d.IntPart()
}

// String returns v as a string. Numbers are formatted without exponent;
// nil and unsupported kinds become "".
func String(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case decimal.Decimal:
		return x.String()
	default:
		return ""
	}
}

// FirstPresent returns the value of the first key present in m with a
// non-nil value. It is the explicit form of an `a ?? b ?? c` chain.
func FirstPresent(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// DecimalField resolves the first present key and coerces it.
func DecimalField(m map[string]any, keys ...string) decimal.Decimal {
	v, _ := FirstPresent(m, keys...)
	return Decimal(v)
}

// Int64Field resolves the first present key and coerces it.
func Int64Field(m map[string]any, keys ...string) int64 {
	v, _ := FirstPresent(m, keys...)
	return Int64(v)
}

// StringField resolves the first present key and coerces it.
func StringField(m map[string]any, keys ...string) string {
	v, _ := FirstPresent(m, keys...)
	return String(v)
}

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func fromString(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func fromUint(u uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0)
}

func bounded(d decimal.Decimal) decimal.Decimal {
	if e := d.Exponent(); e > maxExponent || e < -maxExponent || d.NumDigits() > maxDigits {
		return decimal.Zero
	}
	return d
}
