// Package value holds the tagged cell value used at the edit boundary and the
// best-effort coercions used by every derived computation.
//
// Records are open key/value maps and storage never enforces types; a Value
// is only built when an operator commits input into a typed cell.
package value

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindEmpty Kind = iota
	KindText
	KindNumber
	KindCurrency
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindCurrency:
		return "currency"
	case KindDate:
		return "date"
	default:
		return "empty"
	}
}

// DateLayout is how dates are stored in record payloads.
const DateLayout = "2006-01-02"

// ExternalDateLayout is the day-first convention operators type into date cells.
const ExternalDateLayout = "02/01/2006"

// Value is a committed cell value.
type Value struct {
	Kind   Kind
	Text   string
	Number decimal.Decimal
	Date   time.Time
}

func Empty() Value { return Value{Kind: KindEmpty} }
func Text(s string) Value { return Value{Kind: KindText, Text: s} }
func Number(d decimal.Decimal) Value { return Value{Kind: KindNumber, Number: d} }
func Currency(d decimal.Decimal) Value { return Value{Kind: KindCurrency, Number: d} }
func Date(t time.Time) Value { return Value{Kind: KindDate, Date: t} }
func (v Value) IsEmpty() bool { return v.Kind == KindEmpty }
func (v Value) IsNumeric() bool { return v.Kind == KindNumber || v.Kind == KindCurrency }

// Interface returns the representation written into a record payload:
// strings for text, float64 for number/currency, ISO dates for date, nil when empty.
func (v Value) Interface() any {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber, KindCurrency:
		return v.Number.InexactFloat64()
	case KindDate:
		return v.Date.Format(DateLayout)
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber, KindCurrency:
		return v.Number.String()
	case KindDate:
		return v.Date.Format(DateLayout)
	default:
		return ""
	}
}

// ParseInput converts raw operator input into a Value of the given kind.
// Blank input yields an empty Value; malformed input yields a *ValidationError.
func ParseInput(kind Kind, field, input string) (Value, error) {
	if isBlank(input) {
		return Empty(), nil
	}
	switch kind {
	case KindNumber, KindCurrency:
		d, err := ParseNumber(input)
		if err != nil {
			return Empty(), NewValidationError(field, input, "is not a number")
		}
		if kind == KindCurrency {
			return Currency(d), nil
		}
		return Number(d), nil
	case KindDate:
		t, err := ParseDate(input)
		if err != nil {
			return Empty(), NewValidationError(field, input, "is not a date (DD/MM/YYYY)")
		}
		return Date(t), nil
	default:
		return Text(input), nil
	}
}

// FormatFloat renders a float without trailing zeros.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
