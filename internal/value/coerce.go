package value

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ToFloat coerces a payload value to a number. Strings go through
// ParseNumber, so "1,200.50" and "$15" coerce; anything else reports false.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(t)
	case float32:
		return finite(float64(t))
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case decimal.Decimal:
		return t.InexactFloat64(), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return finite(f)
	case string:
		d, err := ParseNumber(t)
		if err != nil {
			return 0, false
		}
		return d.InexactFloat64(), true
	case Value:
		if t.IsNumeric() {
			return t.Number.InexactFloat64(), true
		}
		if t.Kind == KindText {
			return ToFloat(t.Text)
		}
		return 0, false
	default:
		return 0, false
	}
}

// ToDecimal is ToFloat with exact arithmetic for currency totals.
func ToDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case string:
		d, err := ParseNumber(t)
		return d, err == nil
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	}
	f, ok := ToFloat(v)
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

// ToDate coerces a payload value to a date.
func ToDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		d, err := ParseDate(t)
		return d, err == nil
	case Value:
		if t.Kind == KindDate {
			return t.Date, true
		}
		if t.Kind == KindText {
			return ToDate(t.Text)
		}
	}
	return time.Time{}, false
}

// String renders any payload value the way it is displayed and compared.
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return FormatFloat(t)
	case float32:
		return FormatFloat(float64(t))
	case decimal.Decimal:
		return t.String()
	case time.Time:
		return t.Format(DateLayout)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// IsEmpty reports nil or whitespace-only strings.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case Value:
		return t.IsEmpty()
	}
	return false
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
