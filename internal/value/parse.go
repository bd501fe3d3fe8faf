package value

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	errNotNumber = errors.New("not a number")
	errNotDate   = errors.New("not a date")
)

const currencyGlyphs = "$€£¥₹₽₩₺₪฿₫₴₦"

// dateLayouts are tried in order by ParseDate and ToDate.
var dateLayouts = []string{
	ExternalDateLayout,
	"2/1/2006",
	DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseNumber parses locale-formatted numeric input: currency glyphs, ISO
// currency codes, spaces and thousands separators are stripped; either "."
// or "," may be the decimal separator; "(100)" is negative.
func ParseNumber(input string) (decimal.Decimal, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return decimal.Zero, errNotNumber
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = stripCurrencyCode(s)

	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(currencyGlyphs, r):
		case r == ' ', r == '\u00a0', r == '\u202f', r == '\'', r == '_':
		default:
			b.WriteRune(r)
		}
	}
	s = b.String()

	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}

	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if grouped(s, ",") {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0 && strings.Count(s, ".") > 1:
		if !grouped(s, ".") {
			return decimal.Zero, errNotNumber
		}
		s = strings.ReplaceAll(s, ".", "")
	}

	if !plainDecimal(s) {
		return decimal.Zero, errNotNumber
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errNotNumber
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// ParseDate parses the external day-first convention and ISO forms.
func ParseDate(input string) (time.Time, error) {
	s := strings.TrimSpace(input)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errNotDate
}

// grouped reports whether sep splits s into thousands groups ("1,234,567").
func grouped(s, sep string) bool {
	parts := strings.Split(s, sep)
	if len(parts) < 2 {
		return false
	}
	head := parts[0]
	if len(head) == 0 || len(head) > 3 || !allDigits(head) {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 || !allDigits(p) {
			return false
		}
	}
	return true
}

func plainDecimal(s string) bool {
	if s == "" || s == "." {
		return false
	}
	dots := 0
	digits := 0
	for _, r := range s {
		switch {
		case r == '.':
			dots++
		case r >= '0' && r <= '9':
			digits++
		default:
			return false
		}
	}
	return dots <= 1 && digits > 0
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// stripCurrencyCode removes a leading or trailing three-letter code ("USD 10", "10 EUR").
func stripCurrencyCode(s string) string {
	isCode := func(c string) bool {
		if len(c) != 3 {
			return false
		}
		for _, r := range c {
			if !unicode.IsUpper(r) {
				return false
			}
		}
		return true
	}
	if len(s) > 3 && isCode(s[:3]) {
		return strings.TrimSpace(s[3:])
	}
	if len(s) > 3 && isCode(s[len(s)-3:]) {
		return strings.TrimSpace(s[:len(s)-3])
	}
	return s
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
