package value_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabula/internal/value"
)

func TestParseNumber(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
		err   bool
	}{
		{name: "plain", input: "1234.5", want: "1234.5"},
		{name: "thousands comma", input: "1,234,567", want: "1234567"},
		{name: "us format", input: "1,234.50", want: "1234.5"},
		{name: "eu format", input: "1.234,50", want: "1234.5"},
		{name: "decimal comma", input: "12,5", want: "12.5"},
		{name: "dot thousands", input: "1.234.567", want: "1234567"},
		{name: "dollar", input: "$ 99", want: "99"},
		{name: "euro suffix", input: "15 €", want: "15"},
		{name: "iso code", input: "USD 1,000", want: "1000"},
		{name: "negative glyph", input: "-$40", want: "-40"},
		{name: "accounting negative", input: "(100)", want: "-100"},
		{name: "swiss apostrophe", input: "1'000", want: "1000"},
		{name: "text", input: "abc", err: true},
		{name: "trailing text", input: "12abc", err: true},
		{name: "empty", input: "  ", err: true},
		{name: "two decimals", input: "1.2.3", err: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := value.ParseNumber(tc.input)
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.String())
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := value.ParseDate("05/01/2024")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), d)

	d, err = value.ParseDate("2024-02-01")
	require.NoError(t, err)
	assert.Equal(t, time.February, d.Month())

	_, err = value.ParseDate("yesterday")
	assert.Error(t, err)
}

func TestParseInput(t *testing.T) {
	v, err := value.ParseInput(value.KindCurrency, "amount", "€1.250,00")
	require.NoError(t, err)
	assert.Equal(t, value.KindCurrency, v.Kind)
	assert.Equal(t, 1250.0, v.Interface())

	v, err = value.ParseInput(value.KindDate, "date", "10/01/2024")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10", v.Interface())

	v, err = value.ParseInput(value.KindNumber, "amount", "")
	require.NoError(t, err)
	assert.True(t, v.IsEmpty())
	assert.Nil(t, v.Interface())

	_, err = value.ParseInput(value.KindNumber, "amount", "ten")
	require.Error(t, err)
	assert.True(t, value.IsValidationError(err))
	assert.ErrorIs(t, err, value.ErrInvalid)

	v, err = value.ParseInput(value.KindText, "vendor", "ACME")
	require.NoError(t, err)
	assert.Equal(t, "ACME", v.Interface())
}

func TestToFloat(t *testing.T) {
	testCases := []struct {
		name string
		in   any
		want float64
		ok   bool
	}{
		{name: "float", in: 2.5, want: 2.5, ok: true},
		{name: "int", in: 3, want: 3, ok: true},
		{name: "numeric string", in: "1,200", want: 1200, ok: true},
		{name: "text", in: "n/a", ok: false},
		{name: "nil", in: nil, ok: false},
		{name: "bool", in: true, ok: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := value.ToFloat(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "", value.String(nil))
	assert.Equal(t, "100", value.String(100.0))
	assert.Equal(t, "0.25", value.String(0.25))
	assert.Equal(t, "A", value.String("A"))
	assert.Equal(t, "true", value.String(true))
}
